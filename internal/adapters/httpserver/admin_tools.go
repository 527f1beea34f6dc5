package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
	"github.com/xuri/excelize/v2"

	"github.com/nmoreyra/taller3d/internal/domain"
)

var exportHeader = []string{
	"slug", "name", "short_desc", "price_cents", "compare_at_cents",
	"sku", "material", "color", "stock", "track_inventory", "active", "featured",
}

// adminExportProducts streams the full catalog, inactive rows included, as a
// spreadsheet the team can edit and re-import.
func (s *Server) adminExportProducts(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method", 405)
		return
	}
	products, _, err := s.products.List(r.Context(), domain.ProductFilter{
		IncludeInactive: true,
		PageSize:        10000,
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Products"
	f.SetSheetName("Sheet1", sheet)
	for i, h := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for row, p := range products {
		compareAt := ""
		if p.CompareAtPriceCents != nil {
			compareAt = strconv.FormatInt(*p.CompareAtPriceCents, 10)
		}
		values := []any{
			p.Slug, p.Name, p.ShortDesc, p.PriceCents, compareAt,
			p.SKU, p.Material, p.Color, p.StockQuantity,
			p.TrackInventory, p.Active, p.Featured,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="products.xlsx"`)
	if err := f.Write(w); err != nil {
		log.Error().Err(err).Msg("xlsx export")
	}
}

// adminImportProducts applies price/stock/flag edits from a re-uploaded
// export. Rows are matched by slug; unknown slugs are reported, not created.
func (s *Server) adminImportProducts(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "multipart", 400)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field missing", 400)
		return
	}
	defer file.Close()

	xf, err := excelize.OpenReader(file)
	if err != nil {
		writeErr(w, domain.Validation("file", "not a readable xlsx"))
		return
	}
	defer xf.Close()

	rows, err := xf.GetRows(xf.GetSheetName(0))
	if err != nil || len(rows) < 2 {
		writeErr(w, domain.Validation("file", "sheet has no data rows"))
		return
	}

	col := map[string]int{}
	for i, h := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["slug"]; !ok {
		writeErr(w, domain.Validation("file", "missing slug column"))
		return
	}

	cellAt := func(row []string, name string) (string, bool) {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[i]), true
	}

	updated := 0
	var skipped []string
	for n, row := range rows[1:] {
		slug, _ := cellAt(row, "slug")
		if slug == "" {
			continue
		}
		p, err := s.products.GetBySlug(r.Context(), slug)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("row %d: unknown slug %q", n+2, slug))
			continue
		}
		if v, ok := cellAt(row, "price_cents"); ok && v != "" {
			cents, err := strconv.ParseInt(v, 10, 64)
			if err != nil || cents < 0 {
				skipped = append(skipped, fmt.Sprintf("row %d: bad price_cents %q", n+2, v))
				continue
			}
			p.PriceCents = cents
		}
		if v, ok := cellAt(row, "compare_at_cents"); ok {
			if v == "" {
				p.CompareAtPriceCents = nil
			} else if cents, err := strconv.ParseInt(v, 10, 64); err == nil {
				p.CompareAtPriceCents = &cents
			}
		}
		if v, ok := cellAt(row, "stock"); ok && v != "" {
			if qty, err := strconv.Atoi(v); err == nil && qty >= 0 {
				p.StockQuantity = qty
			}
		}
		for name, dst := range map[string]*bool{
			"track_inventory": &p.TrackInventory,
			"active":          &p.Active,
			"featured":        &p.Featured,
		} {
			if v, ok := cellAt(row, name); ok && v != "" {
				*dst = parseBoolCell(v)
			}
		}
		if v, ok := cellAt(row, "name"); ok && v != "" {
			p.Name = v
		}
		if v, ok := cellAt(row, "short_desc"); ok && v != "" {
			p.ShortDesc = v
		}
		if err := s.products.Update(r.Context(), p); err != nil {
			skipped = append(skipped, fmt.Sprintf("row %d: %v", n+2, err))
			continue
		}
		updated++
	}

	writeJSON(w, 200, map[string]any{"updated": updated, "skipped": skipped})
}

func parseBoolCell(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "y", "si", "sí":
		return true
	}
	return false
}

// adminDescribeProduct drafts a product description from the item's physical
// attributes. The admin reviews and saves it manually.
func (s *Server) adminDescribeProduct(w http.ResponseWriter, r *http.Request, p *domain.Product) {
	if s.cfg.OpenAIAPIKey == "" {
		writeJSON(w, 503, map[string]string{"error": "description assistant not configured"})
		return
	}
	client := openai.NewClient(s.cfg.OpenAIAPIKey)

	prompt := fmt.Sprintf(
		"Write a product description for an online store that sells 3D printed goods.\n"+
			"Product: %s\nMaterial: %s\nColor: %s\nWeight: %dg\nPrint time: %.1fh\n"+
			"Current short description: %s\n"+
			"Two short paragraphs, warm but concrete, no emoji, no invented specs.",
		p.Name, p.Material, p.Color, p.WeightGrams, p.PrintTimeHours, p.ShortDesc,
	)

	resp, err := client.CreateChatCompletion(r.Context(), openai.ChatCompletionRequest{
		Model:     openai.GPT4oMini,
		MaxTokens: 400,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		writeErr(w, &domain.ExternalServiceError{Service: "openai", Err: err})
		return
	}
	if len(resp.Choices) == 0 {
		writeErr(w, &domain.ExternalServiceError{Service: "openai", Err: fmt.Errorf("empty completion")})
		return
	}
	writeJSON(w, 200, map[string]string{"description": strings.TrimSpace(resp.Choices[0].Message.Content)})
}
