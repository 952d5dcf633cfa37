// Package fakeservice is an in-process fake of the remote fiscal document
// service. It speaks the same SOAP dialect, keeps per-account folio and
// document state, and can be scripted to fail.
package fakeservice

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/gin-gonic/gin"

	"github.com/rezonia/einvoice-gateway/internal/wire"
)

// Path is the service endpoint path.
const Path = "/ws/obj/v1.0/Service.svc"

// Config holds server configuration
type Config struct {
	Debug bool

	// RequireSignature rejects submissions without a signed document
	RequireSignature bool
}

// Call is a request received by the fake.
type Call struct {
	Operation wire.Operation
	Identity  string
	Envelope  []byte
}

// Server is the fake service
type Server struct {
	config *Config
	router *gin.Engine

	mu        sync.Mutex
	accounts  map[string]*account
	taxpayers map[string]string
	faults    []Fault
	calls     []Call
	sequence  int
}

type account struct {
	secret    string
	total     int
	used      int
	documents map[docKey]*document
}

// NewServer creates a fake service with no accounts
func NewServer(config *Config) *Server {
	if config == nil {
		config = &Config{}
	}
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if config.Debug {
		router.Use(gin.Logger())
	}

	s := &Server{
		config:    config,
		router:    router,
		accounts:  make(map[string]*account),
		taxpayers: make(map[string]string),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.POST(Path, s.handleSOAP)
}

// Handler returns the http.Handler to mount on an httptest or custom server
func (s *Server) Handler() http.Handler {
	return s.router
}

// AddAccount registers a tenant account with a folio allowance.
func (s *Server) AddAccount(identity, secret string, folios int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[identity] = &account{
		secret:    secret,
		total:     folios,
		documents: make(map[docKey]*document),
	}
}

// AddTaxpayer registers a taxpayer name for LookupTaxpayer.
func (s *Server) AddTaxpayer(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taxpayers[id] = name
}

// FailNext queues faults applied to the next requests, one per request.
func (s *Server) FailNext(faults ...Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, faults...)
}

// Calls returns the requests received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many requests of op were received.
func (s *Server) CallCount(op wire.Operation) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Operation == op {
			n++
		}
	}
	return n
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSOAP(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		writeFault(c, http.StatusBadRequest, "s:Client", "empty request body")
		return
	}

	action := strings.Trim(c.GetHeader("SOAPAction"), `"`)
	op, ok := wire.ParseOperation(action[strings.LastIndex(action, "/")+1:])
	if !ok {
		writeFault(c, http.StatusInternalServerError, "a:ActionNotSupported", "the action '"+action+"' is not supported")
		return
	}

	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = true
	if err := doc.ReadFromBytes(body); err != nil {
		writeFault(c, http.StatusBadRequest, "s:Client", "request is not well formed XML")
		return
	}
	call := operationElement(doc, op)
	if call == nil {
		writeFault(c, http.StatusBadRequest, "s:Client", "operation element "+op.Name()+" not found")
		return
	}

	identity := childText(call, "tokenEmpresa")
	s.record(Call{Operation: op, Identity: identity, Envelope: body})

	if fault, ok := s.nextFault(); ok {
		if fault.apply(c) {
			return
		}
	}

	if ns := doc.Root().SelectAttrValue("xmlns:ser", ""); ns != op.Namespace() {
		writeFault(c, http.StatusInternalServerError, "a:DeserializationFailed", "unexpected namespace "+ns+" for "+op.Name())
		return
	}

	fields := s.dispatch(op, identity, childText(call, "tokenPassword"), call)
	writeResult(c, op, fields)
}

func (s *Server) record(call Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *Server) nextFault() (Fault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.faults) == 0 {
		return Fault{}, false
	}
	f := s.faults[0]
	s.faults = s.faults[1:]
	return f, true
}

func (s *Server) dispatch(op wire.Operation, identity, secret string, call *etree.Element) []field {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[identity]
	if !ok || identity == "" || acct.secret != secret {
		return status(codeAuthFailed, "error", "tokenEmpresa o tokenPassword invalido")
	}

	switch op {
	case wire.OpSubmit:
		return s.submit(acct, childElement(call, wire.WrapperDocument))
	case wire.OpDownloadXML:
		return s.downloadXML(acct, childElement(call, wire.WrapperReference))
	case wire.OpDownloadPDF:
		return s.downloadPDF(acct, childElement(call, wire.WrapperReference))
	case wire.OpDocumentStatus:
		return s.documentStatus(acct, childElement(call, wire.WrapperReference))
	case wire.OpCancel:
		return s.cancel(acct, childElement(call, wire.WrapperReference), childText(call, "motivoAnulacion"))
	case wire.OpRemainingFolios:
		return s.remainingFolios(acct)
	case wire.OpSendEmail:
		return s.sendEmail(acct, childElement(call, wire.WrapperReference), childText(call, "correo"))
	case wire.OpTrackEmail:
		return s.trackEmail(acct, childElement(call, wire.WrapperReference))
	case wire.OpLookupTaxpayer:
		return s.lookupTaxpayer(childElement(call, "consultarRucDVRequest"))
	}
	return status(codeInvalid, "error", "operacion no soportada")
}

// operationElement returns the operation element under Envelope/Body
func operationElement(doc *etree.Document, op wire.Operation) *etree.Element {
	root := doc.Root()
	if root == nil || root.Tag != "Envelope" {
		return nil
	}
	body := childElement(root, "Body")
	if body == nil {
		return nil
	}
	return childElement(body, op.Name())
}

// childElement finds a direct child by local name
func childElement(parent *etree.Element, local string) *etree.Element {
	if parent == nil {
		return nil
	}
	for _, child := range parent.ChildElements() {
		if child.Tag == local {
			return child
		}
	}
	return nil
}

func childText(parent *etree.Element, local string) string {
	if el := childElement(parent, local); el != nil {
		return strings.TrimSpace(el.Text())
	}
	return ""
}

// pathText follows a chain of local names from parent
func pathText(parent *etree.Element, path ...string) string {
	el := parent
	for _, local := range path {
		el = childElement(el, local)
	}
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.Text())
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
