package wire

// Result keys resolved from the flattened result node.
const (
	keyCode                  = "code"
	keyResult                = "result"
	keyMessage               = "message"
	keyDocumentID            = "documentID"
	keyQRPayload             = "qr"
	keyReceivedAt            = "receivedAt"
	keyAuthorizationProtocol = "protocol"
	keyContent               = "content"
	keyDocumentStatus        = "documentStatus"
	keyTrackingID            = "trackingID"
	keyCheckDigit            = "checkDigit"
	keyTaxpayerName          = "taxpayerName"
	keyTaxpayerID            = "taxpayerID"
	keyFoliosTotal           = "foliosTotal"
	keyFoliosUsed            = "foliosUsed"
	keyFoliosAvailable       = "foliosAvailable"
)

// aliasTable maps a result key to the spellings the service uses for it, in
// order of preference. Matching is exact.
type aliasTable map[string][]string

var commonAliases = aliasTable{
	keyCode:    {"codigo", "Codigo", "code", "Code"},
	keyResult:  {"resultado", "Resultado", "result", "Result"},
	keyMessage: {"mensaje", "Mensaje", "message", "Message"},
}

var operationAliases = map[Operation]aliasTable{
	OpSubmit: {
		keyDocumentID:            {"cufe", "CUFE", "Cufe"},
		keyQRPayload:             {"qr", "QR", "Qr", "codigoQR"},
		keyReceivedAt:            {"fechaRecepcionDGI", "FechaRecepcionDGI", "fechaRecepcion"},
		keyAuthorizationProtocol: {"nroProtocoloAutorizacion", "NroProtocoloAutorizacion", "protocoloAutorizacion"},
	},
	OpDownloadXML: {
		keyDocumentID: {"cufe", "CUFE"},
		keyContent:    {"documento", "Documento", "xml", "XML"},
	},
	OpDownloadPDF: {
		keyDocumentID: {"cufe", "CUFE"},
		keyContent:    {"documento", "Documento", "pdf", "PDF"},
	},
	OpDocumentStatus: {
		keyDocumentID:     {"cufe", "CUFE"},
		keyDocumentStatus: {"estatusDocumento", "EstatusDocumento", "estadoDocumento", "estado"},
		keyReceivedAt:     {"fechaRecepcionDGI", "FechaRecepcionDGI", "fechaRecepcion"},
		keyQRPayload:      {"qr", "QR"},
	},
	OpCancel: {
		keyDocumentID: {"cufe", "CUFE"},
	},
	OpRemainingFolios: {
		keyFoliosTotal:     {"folioTotal", "FolioTotal", "foliosTotales"},
		keyFoliosUsed:      {"folioUtilizadoCiclo", "FolioUtilizadoCiclo", "foliosUtilizados"},
		keyFoliosAvailable: {"folioTotalDisponible", "FolioTotalDisponible", "foliosDisponibles", "folioDisponibleCiclo"},
	},
	OpSendEmail: {
		keyTrackingID: {"idRastreo", "IdRastreo", "rastreo", "trackingId"},
	},
	OpTrackEmail: {
		keyTrackingID:     {"idRastreo", "IdRastreo", "rastreo", "trackingId"},
		keyDocumentStatus: {"estatusCorreo", "EstatusCorreo", "estado"},
	},
	OpLookupTaxpayer: {
		keyCheckDigit:   {"dv", "DV", "Dv", "digitoVerificador"},
		keyTaxpayerName: {"razonSocial", "RazonSocial", "nombre"},
		keyTaxpayerID:   {"ruc", "RUC", "Ruc"},
	},
}

// lookup returns the first present spelling of key for op.
func lookup(op Operation, fields map[string]string, key string) string {
	spellings, ok := commonAliases[key]
	if !ok {
		spellings = operationAliases[op][key]
	}
	for _, s := range spellings {
		if v, ok := fields[s]; ok {
			return v
		}
	}
	return ""
}
