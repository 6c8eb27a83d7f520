package ticket

import (
	"net"
	"net/http"

	"github.com/formflow/formflow/model"
)

// FingerprintFromRequest captures the caller attributes a ticket is bound
// to: peer address, authenticated remote user, and the client certificate
// when the connection is mutually authenticated.
func FingerprintFromRequest(r *http.Request) model.Fingerprint {
	fp := model.Fingerprint{}

	if host, port, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		fp.RemoteAddr = host
		fp.RemoteHost = host
		fp.RemotePort = port
	} else if r.RemoteAddr != "" {
		fp.RemoteAddr = r.RemoteAddr
		fp.RemoteHost = r.RemoteAddr
	}

	if principal := model.PrincipalFrom(r.Context()); !principal.IsAnonymous() {
		fp.RemoteUser = principal.ID
	}

	if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
		cert := r.TLS.PeerCertificates[0]
		fp.CertIssuer = cert.Issuer.String()
		fp.CertSubject = cert.Subject.String()
	}

	return fp
}
