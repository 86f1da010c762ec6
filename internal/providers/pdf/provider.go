package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/eroom/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(NewFromConfig),
)

type Provider interface {
	TerminationNotice(ctx context.Context, data NoticeData) ([]byte, error)
}

// NoticeData is the already formatted content of a termination confirmation.
type NoticeData struct {
	ContractNumber string
	Branch         string
	RoomName       string
	TenantName     string
	TenantPhone    string
	Period         string
	RequestedOn    string
	EffectiveOn    string
	Remaining      string
	Penalty        string
	Reason         string
	Status         string
	Statement      string
	IssuedOn       string
}

// FileName builds an ASCII download name such as
// termination-notice-1790000000000-gangnamjeom-301.pdf.
func FileName(data NoticeData) string {
	parts := []string{"termination-notice", data.ContractNumber}
	if s := slug.Make(data.Branch + " " + data.RoomName); s != "" {
		parts = append(parts, s)
	}
	return fmt.Sprintf("%s.pdf", strings.Join(parts, "-"))
}

func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if cfg.PDFFontPath == "" {
		log.Warn("PDF_FONT_PATH not set, hangul text in PDFs will not render")
	}
	return New(cfg.PDFFontPath)
}
