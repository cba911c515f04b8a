package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/duybaohuynhtan/CareerAgent/internal/logger"
	"github.com/duybaohuynhtan/CareerAgent/internal/session"
	"github.com/duybaohuynhtan/CareerAgent/internal/tools"
	"github.com/duybaohuynhtan/CareerAgent/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UploadResult struct {
	FileID   string
	FileName string
	Text     string
	Analysis *tools.AnalysisResult
}

// AttachDocument extracts and analyzes an uploaded résumé and makes it the
// session's active document. Extraction failures leave the session as it
// was. When only the analysis fails the document stays attached and the
// partial result is returned together with the error.
func (o *Orchestrator) AttachDocument(ctx context.Context, sessionID, fileName string, data []byte) (*UploadResult, error) {
	s := o.store.GetOrCreate(sessionID)
	snap, err := s.Acquire()
	if err != nil {
		return nil, err
	}
	defer s.Release()

	log := logger.WithSession(o.logger, s.ID(), snap.Model).With(zap.String("file_name", fileName))

	text, err := o.extractor.Extract(ctx, data, fileName)
	if err != nil {
		log.Warn("document extraction failed", zap.Int("size", len(data)), zap.Error(err))
		return nil, err
	}

	result := &UploadResult{
		FileID:   uuid.NewString(),
		FileName: fileName,
		Text:     text,
	}
	log = log.With(zap.String("file_id", result.FileID))
	log.Info("document extracted",
		zap.Int("text_length", util.RuneLen(text)),
		zap.String("text_preview", util.TruncateForLog(text, o.maxLogLen)),
	)

	doc := session.Document{FileID: result.FileID, FileName: fileName, Text: text}

	analysis, err := o.analyzer.Analyze(ctx, snap.Model, text)
	if err != nil {
		log.Error("document analysis failed", zap.Error(err))
		s.Attach(snap.Epoch, doc)
		return result, err
	}
	result.Analysis = analysis
	doc.Analysis = analysis.Markdown()

	if !s.Attach(snap.Epoch, doc) {
		log.Info("session was reset during the upload, document not attached")
		return result, nil
	}

	now := time.Now()
	s.Append(snap.Epoch,
		session.ChatTurn{Role: session.RoleUser, Content: fmt.Sprintf("Uploaded résumé: %s", fileName), CreatedAt: now},
		session.ChatTurn{Role: session.RoleAssistant, Content: doc.Analysis, CreatedAt: now},
	)

	log.Info("document attached", zap.Bool("low_confidence", analysis.LowConfidence))
	return result, nil
}
