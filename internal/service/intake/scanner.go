package intake

import (
	"context"
	"fmt"
	"io"

	clamd "github.com/dutchcoders/go-clamd"
	apperrors "github.com/weiwangfds/datashare/internal/errors"
)

// Scanner inspects staged bytes before they are committed.
// An infected payload yields ErrFileInfected; an unusable scanner yields ErrFileScanFailed.
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) error
}

// ClamAVScanner streams payloads to a clamd daemon
type ClamAVScanner struct {
	client *clamd.Clamd
}

// NewClamAVScanner address is a clamd URL such as tcp://localhost:3310
func NewClamAVScanner(address string) *ClamAVScanner {
	return &ClamAVScanner{client: clamd.NewClamd(address)}
}

// Ping checks the daemon answers
func (s *ClamAVScanner) Ping() error {
	return s.client.Ping()
}

// Scan sends r over INSTREAM and interprets the verdict
func (s *ClamAVScanner) Scan(ctx context.Context, r io.Reader) error {
	abort := make(chan bool)
	defer close(abort)

	results, err := s.client.ScanStream(r, abort)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrFileScanFailed, err)
	}

	var verdict error
	for {
		select {
		case <-ctx.Done():
			return apperrors.Wrap(apperrors.ErrFileScanFailed, ctx.Err())
		case res, ok := <-results:
			if !ok {
				return verdict
			}
			switch res.Status {
			case clamd.RES_FOUND:
				verdict = apperrors.NewWithDetails(apperrors.ErrFileInfected, res.Description)
			case clamd.RES_ERROR, clamd.RES_PARSE_ERROR:
				if verdict == nil {
					verdict = apperrors.Wrap(apperrors.ErrFileScanFailed, fmt.Errorf("clamd: %s", res.Raw))
				}
			}
		}
	}
}
