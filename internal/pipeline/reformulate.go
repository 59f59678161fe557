package pipeline

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/locus/internal/model"
	"github.com/sells-group/locus/internal/reasoner"
	"github.com/sells-group/locus/internal/schema"
)

// reformulateOnce repeats a stage's reasoner call once with the validation
// problems appended to the prompt. It sits outside the retry policy, which
// never retries schema violations.
func (e *Executor) reformulateOnce(ctx context.Context, st *Stage, sr *model.StageResult, req reasoner.Request, cause error) (*reasoner.Response, error) {
	zap.L().Warn("pipeline: output failed validation, reformulating",
		zap.String("stage", st.Name),
		zap.Error(cause),
	)
	sr.Annotate("reformulated", true)
	req.Prompt += correction(cause)
	return e.generate(ctx, st, sr, req)
}

func correction(cause error) string {
	var b strings.Builder
	b.WriteString("\n\nYour previous answer did not match the required schema.")
	var ve *schema.ValidationError
	if errors.As(cause, &ve) && len(ve.Violations) > 0 {
		b.WriteString(" Fix these problems:\n")
		for _, v := range ve.Violations {
			b.WriteString("- ")
			b.WriteString(v)
			b.WriteByte('\n')
		}
	} else {
		b.WriteString(" Return a single valid JSON object.\n")
	}
	return b.String()
}
