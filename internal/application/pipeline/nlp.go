package pipeline

import (
	"context"

	"github.com/biosustain/lifelike-annotator/internal/annotator/tokenizer"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
)

// Prediction is one entity span an external NLP model found in the document
// text.  Offsets are inclusive char indices into the tokenized text, the same
// coordinate space annotations use.
type Prediction struct {
	Type string
	Lo   int
	Hi   int
}

// NLPClient is the external model service.  The client is a collaborator;
// hosting the model is out of this module's hands.
type NLPClient interface {
	Predict(ctx context.Context, text string) ([]Prediction, error)
}

// applyNLPOverlay tags tokens with the model's predicted types for the entity
// types configured to use the NLP method.  A token is tagged when its span
// matches a prediction span exactly; everything else stays untagged and flows
// through the rules-based path unchanged.
func (s *serviceImpl) applyNLPOverlay(ctx context.Context, configs Configs, text string, tok *tokenizer.Result) error {
	if s.nlp == nil || len(configs.AnnotationMethods) == 0 {
		return nil
	}
	nlpTypes := make(map[string]bool)
	for entityType := range configs.AnnotationMethods {
		if configs.Method(entityType) == MethodNLP {
			nlpTypes[string(entityType)] = true
		}
	}
	if len(nlpTypes) == 0 {
		return nil
	}

	predictions, err := s.nlp.Predict(ctx, text)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeAnnotationFailed, "nlp prediction")
	}

	bySpan := make(map[[2]int]string, len(predictions))
	for _, p := range predictions {
		if nlpTypes[p.Type] {
			bySpan[[2]int{p.Lo, p.Hi}] = p.Type
		}
	}
	for i := range tok.Tokens {
		token := &tok.Tokens[i]
		if predicted, ok := bySpan[[2]int{token.Lo(), token.Hi()}]; ok {
			token.PredictedType = predicted
		}
	}
	return nil
}
