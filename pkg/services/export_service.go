package services

import (
	"fmt"

	"bulkedit-admin/pkg/models"

	"github.com/xuri/excelize/v2"
)

// ExportService は商品一覧と履歴をExcelファイルに書き出します。
type ExportService struct{}

// NewExportService は新しいExportServiceを生成します。
func NewExportService() *ExportService {
	return &ExportService{}
}

const (
	productSheet = "Produtos"
	historySheet = "Histórico"
)

// Products は商品一覧のシートを作成します。バリエーションは商品の下に1行ずつ出力します。
func (s *ExportService) Products(products []models.Product) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), productSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("シート名の設定に失敗: %w", err)
	}

	header := []interface{}{"ID", "Nome", "SKU", "Preço", "Estoque", "Imagem", "Variação de"}
	if err := f.SetSheetRow(productSheet, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("ヘッダーの書き込みに失敗: %w", err)
	}

	row := 2
	for _, p := range products {
		price, _ := p.Price.Float64()
		values := []interface{}{string(p.ID), p.Name, p.SKU, price, p.Stock, p.Image, ""}
		if err := writeRow(f, productSheet, row, values); err != nil {
			f.Close()
			return nil, err
		}
		row++
		for _, v := range p.Variants {
			vp, _ := v.Price.Float64()
			values := []interface{}{string(v.ID), p.Name, v.SKU, vp, v.Stock, "", string(p.ID)}
			if err := writeRow(f, productSheet, row, values); err != nil {
				f.Close()
				return nil, err
			}
			row++
		}
	}

	if err := f.SetColWidth(productSheet, "B", "B", 40); err != nil {
		f.Close()
		return nil, fmt.Errorf("列幅の設定に失敗: %w", err)
	}
	return f, nil
}

// History は履歴一覧のシートを作成します。
func (s *ExportService) History(entries []models.HistoryEntry) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), historySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("シート名の設定に失敗: %w", err)
	}

	header := []interface{}{"ID", "Ação", "Itens afetados", "Status", "Data", "Comando"}
	if err := f.SetSheetRow(historySheet, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("ヘッダーの書き込みに失敗: %w", err)
	}

	for i, e := range entries {
		values := []interface{}{string(e.ID), e.ActionSummary, e.AffectedCount, e.Status, e.CreatedAt, e.FullCommand}
		if err := writeRow(f, historySheet, i+2, values); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("セル位置の計算に失敗: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("行 %d の書き込みに失敗: %w", row, err)
	}
	return nil
}
