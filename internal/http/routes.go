package http

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"voicenotes/internal/audio"
	"voicenotes/internal/config"
	"voicenotes/internal/export"
	"voicenotes/internal/logger"
	"voicenotes/internal/services"
)

//go:embed web/index.html
var uploadPage []byte

type API struct {
	cfg      config.Config
	log      logger.Logger
	stt      services.Transcriber
	analyzer services.Analyzer
	pdfFont  export.Font
	page     []byte
	now      func() time.Time
}

func NewAPI(cfg config.Config, log logger.Logger, stt services.Transcriber, analyzer services.Analyzer, pdfFont export.Font) *API {
	return &API{
		cfg:      cfg,
		log:      log,
		stt:      stt,
		analyzer: analyzer,
		pdfFont:  pdfFont,
		page:     renderUploadPage(cfg.MaxUploadBytes),
		now:      time.Now,
	}
}

// renderUploadPage fills the upload limit into the embedded page.
func renderUploadPage(maxUpload int64) []byte {
	page := bytes.ReplaceAll(uploadPage, []byte("__MAX_UPLOAD_BYTES__"), []byte(strconv.FormatInt(maxUpload, 10)))
	return bytes.ReplaceAll(page, []byte("__MAX_UPLOAD_LABEL__"), []byte(formatSize(maxUpload)))
}

func registerRoutes(r *gin.Engine, api *API) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", api.handleHealth)
		apiGroup.GET("/test-env", api.handleTestEnv)

		apiGroup.POST("/transcribe", api.handleTranscribe)
		apiGroup.POST("/analyze", api.handleAnalyze)
		apiGroup.POST("/export/:format", api.handleExport)
	}

	r.GET("/", api.handleUploadPage)
	r.GET("/upload", api.handleUploadPage)
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) handleTestEnv(c *gin.Context) {
	sttKey := a.cfg.SonioxAPIKey
	analysisKey := a.cfg.AnalysisKey()
	c.JSON(http.StatusOK, gin.H{
		"hasKey":  sttKey != "",
		"length":  len(sttKey),
		"runtime": "go",
		"analysis": gin.H{
			"provider": a.cfg.SummarizerProvider,
			"hasKey":   analysisKey != "",
			"length":   len(analysisKey),
		},
	})
}

func (a *API) handleTranscribe(c *gin.Context) {
	ctx := c.Request.Context()

	if !strings.HasPrefix(strings.ToLower(c.ContentType()), "multipart/form-data") {
		respondMessage(c, http.StatusBadRequest, "request must be multipart/form-data")
		return
	}
	if strings.TrimSpace(a.cfg.SonioxAPIKey) == "" {
		respondMessage(c, http.StatusInternalServerError, "SONIOX_API_KEY is not configured")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			a.respondFailure(c, audio.ErrTooLarge)
			return
		}
		respondMessage(c, http.StatusBadRequest, `missing file field "file"`)
		return
	}
	if fileHeader.Size > a.cfg.MaxUploadBytes {
		a.respondFailure(c, audio.ErrTooLarge)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, fmt.Errorf("open upload: %w", err))
		return
	}
	defer file.Close()

	upload, err := audio.ReadUpload(file, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), fileHeader.Size, a.cfg.MaxUploadBytes)
	if err != nil {
		a.log.Warn(ctx, "rejected upload %s: %v", fileHeader.Filename, err)
		a.respondFailure(c, err)
		return
	}
	a.log.Info(ctx, "accepted %s (%s, %d bytes)", upload.Filename, upload.Format, upload.Size)

	transcript, err := a.stt.Transcribe(ctx, upload)
	if err != nil {
		a.log.Error(ctx, "transcribe %s: %v", upload.Filename, err)
		a.respondFailure(c, err)
		return
	}

	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(transcript))
}

func (a *API) handleAnalyze(c *gin.Context) {
	ctx := c.Request.Context()

	if strings.TrimSpace(a.cfg.AnalysisKey()) == "" {
		respondMessage(c, http.StatusInternalServerError, "summarizer api key is not configured")
		return
	}

	// A missing or malformed body is treated as empty text.
	var payload struct {
		Text any `json:"text"`
	}
	_ = c.ShouldBindJSON(&payload)

	text := ""
	switch v := payload.Text.(type) {
	case string:
		text = strings.TrimSpace(v)
	case float64, bool:
		text = fmt.Sprint(v)
	}
	if text == "" {
		respondMessage(c, http.StatusBadRequest, "empty text")
		return
	}

	result, err := a.analyzer.Analyze(ctx, text)
	if err != nil {
		a.log.Error(ctx, "analyze: %v", err)
		a.respondFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type exportRequest struct {
	Tab string `json:"tab"`
	export.Document
}

func (a *API) handleExport(c *gin.Context) {
	var payload exportRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	doc := payload.Document

	switch c.Param("format") {
	case "markdown", "md":
		md, err := export.Markdown(doc, payload.Tab)
		if err != nil {
			if errors.Is(err, export.ErrUnknownTab) {
				respondError(c, http.StatusBadRequest, err)
				return
			}
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(md))

	case "pdf":
		data, err := export.PDF(doc, a.now(), a.pdfFont)
		if err != nil {
			if errors.Is(err, export.ErrMissingGlyphs) {
				respondError(c, http.StatusUnprocessableEntity, err)
				return
			}
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.Header("Content-Disposition", attachment(doc.Title, "pdf"))
		c.Data(http.StatusOK, "application/pdf", data)

	case "docx":
		data, err := export.DOCX(doc)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.Header("Content-Disposition", attachment(doc.Title, "docx"))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", data)

	default:
		respondMessage(c, http.StatusNotFound, "unknown export format")
	}
}

func (a *API) handleUploadPage(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", a.page)
}

func attachment(title, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '-'
		default:
			return -1
		}
	}, title)
	if name == "" {
		name = "voice-note"
	}
	return fmt.Sprintf(`attachment; filename="%s.%s"`, name, ext)
}
