package settings

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strings"
	"time"

	gomail "gopkg.in/gomail.v2"

	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/types"
)

// SMTPTester performs a live connection test against an SMTP configuration
// and reports a machine-readable outcome. The admin console keys remediation
// hints off the result code, so the code set is a stable contract.
type SMTPTester interface {
	Test(ctx context.Context, cfg *types.SMTPSettings, recipient string) *types.SMTPTestResult
}

// GomailTester dials the configured server and, when a recipient is given,
// sends a test message through it.
type GomailTester struct {
	logger *logger.Logger
}

// NewGomailTester creates the production SMTP tester.
func NewGomailTester(log *logger.Logger) *GomailTester {
	return &GomailTester{logger: log}
}

// Test dials the server with the given settings. An empty recipient limits
// the test to connect+authenticate; otherwise a short test mail is sent.
func (t *GomailTester) Test(ctx context.Context, cfg *types.SMTPSettings, recipient string) *types.SMTPTestResult {
	if cfg.Host == "" || cfg.Port == 0 {
		return &types.SMTPTestResult{
			Success: false,
			Code:    types.SMTPErrHostNotFound,
			Message: "SMTP host and port must be configured",
		}
	}

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.UseTLS {
		d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	}

	type dialResult struct {
		closer gomail.SendCloser
		err    error
	}
	done := make(chan dialResult, 1)
	start := time.Now()
	go func() {
		closer, err := d.Dial()
		done <- dialResult{closer, err}
	}()

	var res dialResult
	select {
	case res = <-done:
	case <-ctx.Done():
		t.logger.ExternalCall("smtp", "dial", false, time.Since(start).Milliseconds())
		return &types.SMTPTestResult{
			Success: false,
			Code:    types.SMTPErrConnectionTimeout,
			Message: "Connection to the SMTP server timed out",
		}
	}
	t.logger.ExternalCall("smtp", "dial", res.err == nil, time.Since(start).Milliseconds())

	if res.err != nil {
		return ClassifySMTPError(res.err)
	}
	defer res.closer.Close()

	if recipient != "" {
		m := gomail.NewMessage()
		m.SetAddressHeader("From", cfg.FromAddress, cfg.FromName)
		m.SetHeader("To", recipient)
		m.SetHeader("Subject", "SMTP configuration test")
		m.SetBody("text/plain", "This is a test message confirming your SMTP settings work.")

		if err := gomail.Send(res.closer, m); err != nil {
			result := ClassifySMTPError(err)
			if result.Code == "" || result.Code == types.SMTPErrSendFailed {
				result.Code = types.SMTPErrSendFailed
				result.Message = "Connected, but sending the test message failed: " + err.Error()
			}
			return result
		}
	}

	return &types.SMTPTestResult{
		Success: true,
		Message: "SMTP connection verified",
	}
}

// ClassifySMTPError maps a dial or send failure onto the stable result codes.
func ClassifySMTPError(err error) *types.SMTPTestResult {
	msg := err.Error()
	lower := strings.ToLower(msg)

	code := types.SMTPErrSendFailed
	friendly := "SMTP test failed: " + msg

	switch {
	case strings.Contains(lower, "application-specific password") ||
		strings.Contains(lower, "app password") ||
		strings.Contains(lower, "534"):
		code = types.SMTPErrAppPasswordRequired
		friendly = "The provider requires an app password instead of the account password"
	case strings.Contains(lower, "535") ||
		strings.Contains(lower, "authentication failed") ||
		strings.Contains(lower, "invalid credentials") ||
		strings.Contains(lower, "username and password not accepted"):
		code = types.SMTPErrAuthenticationFailed
		friendly = "The SMTP server rejected the username or password"
	case strings.Contains(lower, "no such host"):
		code = types.SMTPErrHostNotFound
		friendly = "The SMTP host could not be resolved"
	case strings.Contains(lower, "connection refused"):
		code = types.SMTPErrConnectionRefused
		friendly = "The SMTP server refused the connection, check the host and port"
	case isTimeout(err) || strings.Contains(lower, "timeout"):
		code = types.SMTPErrConnectionTimeout
		friendly = "Connection to the SMTP server timed out"
	case strings.Contains(lower, "tls") ||
		strings.Contains(lower, "certificate") ||
		strings.Contains(lower, "handshake"):
		code = types.SMTPErrTLSFailed
		friendly = "TLS negotiation with the SMTP server failed"
	}

	return &types.SMTPTestResult{Success: false, Code: code, Message: friendly}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
