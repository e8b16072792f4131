package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sapph1re/blindboard/fhe"
)

// Result carries the attestations for one decryption request, in the order
// the handles were requested.
type Result struct {
	Attestations []fhe.Attestation `json:"attestations"`
}

// StatusError is an oracle failure with an HTTP-like status code.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("oracle: status %d: %s", e.Code, e.Message)
}

// Retryable reports whether the failure is transient infrastructure trouble
// worth retrying, as opposed to a rejected request.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Client requests decryptions. Implementations may talk to a remote oracle
// or to an in-process service.
type Client interface {
	Decrypt(ctx context.Context, handles []fhe.Handle) (*Result, error)
}

// Service fulfils decryption requests against the confidential engine. Only
// handles previously marked decryptable by the protocol are revealed.
type Service struct {
	engine *fhe.Engine
}

// NewService wraps the engine's decryption authority.
func NewService(e *fhe.Engine) *Service {
	return &Service{engine: e}
}

// Decrypt reveals each handle and returns its attestation. A handle that is
// unknown or not decryptable rejects the whole request.
func (s *Service) Decrypt(handles []fhe.Handle) (*Result, error) {
	if len(handles) == 0 {
		return nil, &StatusError{Code: http.StatusBadRequest, Message: "no handles requested"}
	}
	res := &Result{Attestations: make([]fhe.Attestation, 0, len(handles))}
	for _, h := range handles {
		_, att, err := s.engine.Reveal(h)
		if err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, fhe.ErrUnknownHandle) || errors.Is(err, fhe.ErrNotDecryptable) {
				code = http.StatusUnprocessableEntity
			}
			return nil, &StatusError{Code: code, Message: err.Error()}
		}
		res.Attestations = append(res.Attestations, att)
	}
	return res, nil
}

// LocalClient adapts a Service to the Client interface for single-process
// deployments.
type LocalClient struct {
	svc *Service
}

// NewLocalClient wraps the service.
func NewLocalClient(svc *Service) *LocalClient { return &LocalClient{svc: svc} }

func (c *LocalClient) Decrypt(ctx context.Context, handles []fhe.Handle) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.svc.Decrypt(handles)
}
