package oracle

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/sapph1re/blindboard/fhe"
)

// decryptRequest is the wire format of POST /decrypt.
type decryptRequest struct {
	Handles []fhe.Handle `json:"handles"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Server exposes a Service over HTTPS with a self-signed certificate.
type Server struct {
	svc     *Service
	server  *http.Server
	cert    tls.Certificate
	certPEM []byte
}

// NewServer builds a server for the given bind address. The generated
// certificate's PEM is available through CertPEM for client pinning.
func NewServer(svc *Service, address string) (*Server, error) {
	cert, certPEM, err := generateSelfSignedCert(address)
	if err != nil {
		return nil, fmt.Errorf("generating oracle certificate: %w", err)
	}
	s := &Server{svc: svc, cert: cert, certPEM: certPEM}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /decrypt", s.handleDecrypt)
	s.server = &http.Server{Addr: address, Handler: mux}
	return s, nil
}

// CertPEM returns the PEM-encoded server certificate.
func (s *Server) CertPEM() []byte { return s.certPEM }

// Start serves on the listener until Close.
func (s *Server) Start(l net.Listener) {
	tl := tls.NewListener(l, &tls.Config{Certificates: []tls.Certificate{s.cert}})
	go func() {
		err := s.server.Serve(tl)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(err)
		}
	}()
}

// Close shuts the server down.
func (s *Server) Close() error { return s.server.Close() }

func (s *Server) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	var req decryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request: "+err.Error())
		return
	}
	res, err := s.svc.Decrypt(req.Handles)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			writeError(w, se.Code, se.Message)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Message: msg})
}

// HTTPClient talks to a remote oracle server, pinning its certificate.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient builds a client for the oracle at address, trusting only the
// given PEM certificate.
func NewHTTPClient(address string, certPEM []byte) (*HTTPClient, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(certPEM) {
		return nil, fmt.Errorf("oracle: cannot parse pinned certificate")
	}
	return &HTTPClient{
		baseURL: "https://" + address,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{RootCAs: pool},
			},
		},
	}, nil
}

// Decrypt posts the handles and maps transport failures to retryable
// StatusError values.
func (c *HTTPClient) Decrypt(ctx context.Context, handles []fhe.Handle) (*Result, error) {
	body, err := json.Marshal(decryptRequest{Handles: handles})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/decrypt", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// connection-level trouble is transient by definition here
		return nil, &StatusError{Code: http.StatusServiceUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var er errorResponse
		msg := resp.Status
		if b, rerr := io.ReadAll(resp.Body); rerr == nil && json.Unmarshal(b, &er) == nil && er.Message != "" {
			msg = er.Message
		}
		return nil, &StatusError{Code: resp.StatusCode, Message: msg}
	}
	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &res, nil
}

// generateSelfSignedCert creates a one-year self-signed certificate for the
// host part of address.
func generateSelfSignedCert(address string) (tls.Certificate, []byte, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"Blindboard Oracle"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.ParseIP(host)},
		DNSNames:              []string{host},
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	return tls.Certificate{Certificate: [][]byte{certDER}, PrivateKey: priv}, certPEM, nil
}
