package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/nixxel-company-limited/booth-printer/models"
)

// translatedFields are the free-text fields worth localizing; IDs and
// numbers print as stored.
var translatedFields = []models.Field{
	models.FieldName,
	models.FieldGender,
	models.FieldPollingStation,
}

// translate localizes every record of job. A field that fails to translate
// keeps its original text.
func (s *Session) translate(ctx context.Context, job models.PrintJob, log *zap.Logger) models.PrintJob {
	if s.opts.Translator == nil {
		return job
	}

	job.Primary = s.translateVoter(ctx, job.Primary, log)
	if len(job.Family) > 0 {
		family := make([]models.Voter, len(job.Family))
		for i, v := range job.Family {
			family[i] = s.translateVoter(ctx, v, log)
		}
		job.Family = family
	}
	return job
}

func (s *Session) translateVoter(ctx context.Context, v models.Voter, log *zap.Logger) models.Voter {
	for _, f := range translatedFields {
		text := v.Field(f)
		if text == "" {
			continue
		}
		out, err := s.opts.Translator.Translate(ctx, text)
		if err != nil {
			log.Debug("translation skipped", zap.String("text", text), zap.Error(err))
			continue
		}
		v = v.WithField(f, out)
	}
	return v
}
