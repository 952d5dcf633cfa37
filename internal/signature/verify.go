package signature

import (
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
)

// Verify reports whether signedDoc carries a valid enveloped signature made
// with the key of cert. Any structural or cryptographic mismatch, or a
// signature by another certificate, yields false.
func Verify(signedDoc []byte, cert *x509.Certificate) bool {
	if cert == nil {
		return false
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(signedDoc); err != nil {
		return false
	}
	root := doc.Root()
	if root == nil || findSignatureElement(root) == nil {
		return false
	}

	validationCtx := dsig.NewDefaultValidationContext(&dsig.MemoryX509CertificateStore{
		Roots: []*x509.Certificate{cert},
	})
	_, err := validationCtx.Validate(root)
	return err == nil
}

// ExtractCertificate returns the first certificate of the signature KeyInfo
func ExtractCertificate(signedDoc []byte) (*x509.Certificate, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(signedDoc); err != nil {
		return nil, ErrMalformedDocument(err)
	}
	root := doc.Root()
	if root == nil {
		return nil, ErrNoSignature()
	}

	sig := findSignatureElement(root)
	if sig == nil {
		return nil, ErrNoSignature()
	}

	certElem := findElementRecursive(sig, "X509Certificate")
	if certElem == nil || strings.TrimSpace(certElem.Text()) == "" {
		return nil, ErrMalformedCert("no X509Certificate found in Signature", nil)
	}

	der, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(certElem.Text()), ""))
	if err != nil {
		return nil, ErrMalformedCert("failed to decode certificate", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, ErrMalformedCert(fmt.Sprintf("failed to parse certificate (%d bytes)", len(der)), err)
	}
	return cert, nil
}

// findSignatureElement returns the Signature child of root, falling back to
// a recursive search
func findSignatureElement(root *etree.Element) *etree.Element {
	for _, child := range root.ChildElements() {
		if child.Tag == "Signature" && child.NamespaceURI() == XMLDSigNamespace {
			return child
		}
	}
	return findElementRecursive(root, "Signature")
}

// findElementRecursive searches for an element by local name
func findElementRecursive(elem *etree.Element, localName string) *etree.Element {
	if elem.Tag == localName {
		return elem
	}
	for _, child := range elem.ChildElements() {
		if found := findElementRecursive(child, localName); found != nil {
			return found
		}
	}
	return nil
}
