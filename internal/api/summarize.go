package api

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dverbeek/lecturecast/internal/model"
	"github.com/dverbeek/lecturecast/internal/queue"
)

// storedUpload describes a video persisted into the uploads directory.
type storedUpload struct {
	originalName string
	storedName   string
	size         int64
	contentHash  string
}

// handleSummarize drives one request through the pipeline:
// Received -> Stored -> Invoking -> (Succeeded | Failed) -> Responded.
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	acc := s.optionalAccount(r)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1024)
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	upload, formModelSize, err := s.readMultipart(mr)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if upload == nil {
		respondError(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	// Exactly one ledger entry per accepted upload, whatever happens next.
	var userID *string
	if acc != nil {
		id := acc.ID
		userID = &id
	}
	s.ledger.Append(model.UploadRecord{
		Name:        upload.originalName,
		Stored:      upload.storedName,
		Size:        upload.size,
		ContentHash: upload.contentHash,
		At:          time.Now().UnixMilli(),
		Status:      model.UploadProcessing,
		UserID:      userID,
	})

	size, err := s.resolveModelSize(formModelSize, acc)
	if err != nil {
		s.ledger.SetStatus(upload.storedName, model.UploadSkipped)
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The summarizer writes to fixed paths under the output directory, so the
	// invoke-then-read window is held under one mutex.
	s.invokeMu.Lock()
	invokeErr := s.invoker.Invoke(r.Context(), size)
	if invokeErr != nil {
		s.invokeMu.Unlock()
		s.ledger.SetStatus(upload.storedName, model.UploadSkipped)
		s.log.Error("summarization failed", "stored", upload.storedName, "error", invokeErr)
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error":  "Processing failed",
			"detail": invokeErr.Error(),
		})
		return
	}
	summary := s.reader.Read()
	s.invokeMu.Unlock()

	s.ledger.SetStatus(upload.storedName, model.UploadProcessed)

	// Best-effort bookkeeping: neither history nor archival may fail the
	// response once the invocation itself succeeded.
	if acc != nil {
		entry := model.UploadHistoryEntry{
			FileName:         upload.storedName,
			OriginalName:     upload.originalName,
			FileSize:         upload.size,
			UploadedAt:       time.Now().UTC(),
			Status:           model.HistoryCompleted,
			SummaryGenerated: true,
		}
		if err := s.accounts.AppendHistory(r.Context(), acc.ID, entry); err != nil {
			s.log.Warn("append account history failed", "userId", acc.ID, "error", err)
		}
	}
	if s.archiver != nil {
		payload := queue.ArchivePayload{
			Stored:       upload.storedName,
			OriginalName: upload.originalName,
			ContentHash:  upload.contentHash,
			OutputDir:    s.cfg.OutputDir,
		}
		if err := s.archiver.Enqueue(r.Context(), payload); err != nil {
			s.log.Warn("enqueue archive failed", "stored", upload.storedName, "error", err)
		}
	}

	respondJSON(w, http.StatusOK, summary)
}

// readMultipart walks the form parts, persisting the video part and capturing
// the optional modelSize field regardless of part order.
func (s *Server) readMultipart(mr *multipart.Reader) (*storedUpload, string, error) {
	var upload *storedUpload
	var modelSize string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, "", errors.New("failed to read upload")
		}
		switch part.FormName() {
		case "video":
			if upload == nil {
				upload, err = s.persistPart(part)
				if err != nil {
					part.Close()
					return nil, "", err
				}
			}
			part.Close()
		case "modelSize":
			value, err := io.ReadAll(io.LimitReader(part, 64))
			part.Close()
			if err != nil {
				return nil, "", errors.New("failed to read upload")
			}
			modelSize = strings.TrimSpace(string(value))
		default:
			part.Close()
		}
	}
	return upload, modelSize, nil
}

// persistPart streams the video to disk under a collision-resistant name and
// fingerprints the bytes on the way through.
func (s *Server) persistPart(part *multipart.Part) (*storedUpload, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o750); err != nil {
		return nil, errors.New("failed to store file")
	}
	originalName := filepath.Base(part.FileName())
	if originalName == "" || originalName == "." {
		originalName = "upload.mp4"
	}
	ext := filepath.Ext(originalName)
	base := strings.TrimSuffix(originalName, ext)
	storedName := fmt.Sprintf("%s_%d%s", base, time.Now().UnixMilli(), ext)
	path := filepath.Join(s.cfg.UploadDir, storedName)

	dst, err := os.Create(path)
	if err != nil {
		return nil, errors.New("failed to store file")
	}
	defer dst.Close()

	hash := sha1.New()
	written, err := io.Copy(io.MultiWriter(dst, hash), part)
	if err != nil {
		os.Remove(path)
		return nil, errors.New("failed to read upload")
	}
	if written == 0 {
		os.Remove(path)
		return nil, errors.New("No file uploaded")
	}
	if written > s.cfg.MaxFileSize {
		os.Remove(path)
		return nil, fmt.Errorf("file exceeds limit (%d bytes)", s.cfg.MaxFileSize)
	}
	return &storedUpload{
		originalName: originalName,
		storedName:   storedName,
		size:         written,
		contentHash:  hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

// resolveModelSize applies precedence: explicit form field, then the caller's
// stored preference, then the default.
func (s *Server) resolveModelSize(form string, acc *model.Account) (model.ModelSize, error) {
	if form != "" {
		return model.ParseModelSize(form)
	}
	if acc != nil && acc.Preferences.ModelSize != "" {
		return acc.Preferences.ModelSize, nil
	}
	return model.DefaultModelSize, nil
}
