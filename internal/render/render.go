package render

import (
	"strconv"

	"stock-advisor-backend/internal/model"
)

// Row 一行展示数据
type Row struct {
	Name     string
	Sector   string
	Quantity string
	Price    string
	Category string
}

// Rows 推荐列表到展示行的纯函数，保持顺序；空列表返回 nil，面板不展示
func Rows(list model.RecommendationList) []Row {
	if len(list) == 0 {
		return nil
	}
	rows := make([]Row, 0, len(list))
	for _, s := range list {
		row := Row{
			Name:     s.Name,
			Sector:   s.Sector,
			Quantity: Shares(s.Quantity),
			Category: s.Category,
		}
		if s.Price > 0 {
			row.Price = "$" + strconv.FormatFloat(s.Price, 'f', 2, 64)
		}
		rows = append(rows, row)
	}
	return rows
}

// Shares 数量文案
func Shares(n int) string {
	return strconv.Itoa(n) + " shares"
}
