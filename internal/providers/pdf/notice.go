package pdf

import (
	"context"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/johnfercher/maroto/v2/pkg/repository"
)

const hangulFamily = "hangul"

type PDFProvider struct {
	fontPath string
}

func New(fontPath string) *PDFProvider {
	return &PDFProvider{fontPath: strings.TrimSpace(fontPath)}
}

func (p *PDFProvider) builder() (config.Builder, error) {
	b := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "{current} / {total}",
			Place:   props.RightBottom,
		})
	if p.fontPath == "" {
		return b, nil
	}
	fonts, err := repository.New().
		AddUTF8Font(hangulFamily, fontstyle.Normal, p.fontPath).
		AddUTF8Font(hangulFamily, fontstyle.Bold, p.fontPath).
		Load()
	if err != nil {
		return nil, err
	}
	return b.WithCustomFonts(fonts).WithDefaultFont(&props.Font{Family: hangulFamily}), nil
}

func (p *PDFProvider) TerminationNotice(ctx context.Context, data NoticeData) ([]byte, error) {
	cfg, err := p.builder()
	if err != nil {
		return nil, err
	}
	m := maroto.New(cfg.Build())

	m.AddRow(16,
		text.NewCol(12, "중도해지 확인서", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Center,
		}),
	)
	m.AddRow(8,
		text.NewCol(12, data.Branch, props.Text{Size: 11, Align: align.Center}),
	)
	m.AddRow(4, line.NewCol(12))

	rows := [][2]string{
		{"계약 번호", data.ContractNumber},
		{"호실", data.RoomName},
		{"임차인", data.TenantName},
		{"연락처", data.TenantPhone},
		{"계약 기간", data.Period},
		{"해지 요청일", data.RequestedOn},
		{"해지 예정일", data.EffectiveOn},
		{"잔여 기간", data.Remaining},
		{"예상 위약금", data.Penalty},
		{"처리 상태", data.Status},
	}
	if data.Reason != "" {
		rows = append(rows, [2]string{"해지 사유", data.Reason})
	}
	for _, r := range rows {
		m.AddRow(8,
			text.NewCol(4, r[0], props.Text{Size: 10, Style: fontstyle.Bold}),
			text.NewCol(8, r[1], props.Text{Size: 10}),
		)
	}

	m.AddRow(6, col.New(12))
	m.AddRow(4, line.NewCol(12))
	for _, paragraph := range strings.Split(data.Statement, "\n") {
		m.AddRow(6, text.NewCol(12, paragraph, props.Text{Size: 10}))
	}

	m.AddRow(20, col.New(12))
	m.AddRow(8,
		col.New(6),
		text.NewCol(6, "발행일: "+data.IssuedOn, props.Text{Size: 10, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(6),
		text.NewCol(6, "임차인: "+data.TenantName+" (서명)", props.Text{Size: 10, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
