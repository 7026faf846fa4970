package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"voicenotes/internal/audio"
	"voicenotes/internal/services"
)

// failure is what a handler reports for an error: a status, a short message
// and optional details copied from the upstream answer.
type failure struct {
	status  int
	message string
	details any
}

func statusFor(err error, maxUpload int64) failure {
	var (
		upErr    *services.UpstreamError
		protoErr *services.ProtocolError
		maxErr   *http.MaxBytesError
	)

	switch {
	case errors.Is(err, audio.ErrTooLarge), errors.As(err, &maxErr):
		return failure{status: http.StatusRequestEntityTooLarge, message: fmt.Sprintf("file too large (>%s)", formatSize(maxUpload))}
	case errors.Is(err, audio.ErrUnsupportedType):
		return failure{
			status:  http.StatusUnsupportedMediaType,
			message: "unsupported audio type; use m4a, mp3, wav, aac, ogg, webm, flac, 3gp, amr or mp4",
		}
	case errors.Is(err, services.ErrEmptyText):
		return failure{status: http.StatusBadRequest, message: "empty text"}
	case errors.Is(err, services.ErrAPIKeyMissing):
		return failure{status: http.StatusInternalServerError, message: "api key is not configured on the server"}
	case errors.Is(err, services.ErrTranscriptTimeout):
		return failure{status: http.StatusGatewayTimeout, message: "timed out waiting for transcript"}
	case errors.Is(err, context.DeadlineExceeded):
		return failure{status: http.StatusGatewayTimeout, message: "upstream request timed out"}
	case errors.As(err, &protoErr):
		return failure{status: http.StatusBadGateway, message: protoErr.Error(), details: protoErr.Details}
	case errors.As(err, &upErr):
		status := upErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		details := upErr.Details
		if details == nil && upErr.Err != nil {
			details = upErr.Err.Error()
		}
		return failure{status: status, message: upstreamMessage(upErr.Op), details: details}
	default:
		return failure{status: http.StatusInternalServerError, message: err.Error()}
	}
}

func upstreamMessage(op string) string {
	switch op {
	case services.OpUpload:
		return "upload to speech-to-text provider failed"
	case services.OpCreate:
		return "create transcription failed"
	case services.OpAnalyze:
		return "analysis failed"
	default:
		return op + " failed"
	}
}

// isBodyTooLarge also catches the multipart reader paths that flatten the
// *http.MaxBytesError into a plain message.
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

// formatSize prints a byte count the way limits are configured.
func formatSize(n int64) string {
	switch {
	case n > 0 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMB", n>>20)
	case n > 0 && n%(1<<10) == 0:
		return fmt.Sprintf("%dKB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

func (a *API) respondFailure(c *gin.Context, err error) {
	f := statusFor(err, a.cfg.MaxUploadBytes)
	if f.details != nil {
		c.JSON(f.status, gin.H{"error": f.message, "details": f.details})
		return
	}
	respondMessage(c, f.status, f.message)
}

func respondError(c *gin.Context, status int, err error) {
	respondMessage(c, status, err.Error())
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
