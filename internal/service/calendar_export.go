package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/cleanops/internal/db"
	"github.com/cleanops/internal/schedule"
	"github.com/xuri/excelize/v2"
)

const (
	exportSheetCalendar = "Календарь"
	exportSheetSummary  = "Сводка"
)

var exportHeader = []string{
	"Менеджер",
	"Объект",
	"Периодичность",
	"Дата",
	"Начало",
	"Окончание",
	"Работа",
	"Помещение",
	"Статус",
}

var exportColumnWidths = []float64{24, 30, 16, 12, 8, 10, 30, 20, 18}

var bandLabels = map[string]string{
	"multiple_daily": "Несколько раз в день",
	"daily":          "Ежедневно",
	"weekly":         "Еженедельно",
	"monthly":        "Ежемесячно",
	"quarterly":      "Ежеквартально",
	"yearly":         "Ежегодно",
}

// Export 生成日历视图的 Excel 工作簿，时间按对象时区展示
func (a *CalendarAggregator) Export(ctx context.Context, req ViewRequest) ([]byte, error) {
	view, err := a.View(ctx, req)
	if err != nil {
		return nil, err
	}

	locations, err := a.objectLocations(ctx, view)
	if err != nil {
		return nil, err
	}

	return renderCalendarWorkbook(view, locations)
}

func (a *CalendarAggregator) objectLocations(ctx context.Context, view *CalendarView) (map[string]*time.Location, error) {
	ids := make([]string, 0)
	for _, manager := range view.Managers {
		for _, object := range manager.Objects {
			ids = append(ids, object.ObjectID)
		}
	}

	locations := make(map[string]*time.Location, len(ids))
	if len(ids) == 0 {
		return locations, nil
	}

	var objects []db.Object
	if err := a.db.WithContext(ctx).Where("id IN ?", ids).Find(&objects).Error; err != nil {
		return nil, fmt.Errorf("load objects: %w", err)
	}
	for _, object := range objects {
		locations[object.ID] = CalendarFor(object).Location
	}
	return locations, nil
}

func renderCalendarWorkbook(view *CalendarView, locations map[string]*time.Location) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheetCalendar)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if _, err := f.NewSheet(exportSheetSummary); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeRow(f, exportSheetCalendar, 1, exportHeader); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(exportSheetCalendar, "A1", "I1", headerStyle); err != nil {
		return nil, fmt.Errorf("set header style: %w", err)
	}
	for i, width := range exportColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("convert column number: %w", err)
		}
		if err := f.SetColWidth(exportSheetCalendar, col, col, width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	row := 2
	for _, manager := range view.Managers {
		for _, object := range manager.Objects {
			loc := locations[object.ObjectID]
			if loc == nil {
				loc = time.UTC
			}
			for _, band := range object.Bands {
				for _, task := range band.Tasks {
					values := []any{
						manager.ManagerName,
						object.ObjectName,
						bandLabel(band.Band),
						task.Date,
						task.ScheduledStart.In(loc).Format("15:04"),
						task.ScheduledEnd.In(loc).Format("15:04"),
						task.WorkType,
						task.RoomName,
						statusLabel(task.Status),
					}
					if err := writeRow(f, exportSheetCalendar, row, values); err != nil {
						return nil, err
					}
					row++
				}
			}
		}
	}

	if err := writeSummary(f, view, headerStyle); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, view *CalendarView, headerStyle int) error {
	header := []any{"Менеджер", "Объект", "Всего"}
	for _, status := range schedule.AllStatuses {
		header = append(header, statusLabel(status))
	}
	if err := writeRow(f, exportSheetSummary, 1, header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return fmt.Errorf("convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(exportSheetSummary, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("set header style: %w", err)
	}

	countsRow := func(manager, object string, counts StatusCounts) []any {
		values := []any{manager, object, counts.Total}
		for _, status := range schedule.AllStatuses {
			values = append(values, counts.ByStatus[status])
		}
		return values
	}

	row := 2
	for _, manager := range view.Managers {
		for _, object := range manager.Objects {
			if err := writeRow(f, exportSheetSummary, row, countsRow(manager.ManagerName, object.ObjectName, object.Counts)); err != nil {
				return err
			}
			row++
		}
		if err := writeRow(f, exportSheetSummary, row, countsRow(manager.ManagerName, "Итого", manager.Counts)); err != nil {
			return err
		}
		row++
	}
	return writeRow(f, exportSheetSummary, row, countsRow("Всего", "", view.Counts))
}

func writeRow[T any](f *excelize.File, sheet string, row int, values []T) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d on %s: %w", row, sheet, err)
	}
	return nil
}

func bandLabel(band string) string {
	if label, ok := bandLabels[band]; ok {
		return label
	}
	return band
}

func statusLabel(status schedule.Status) string {
	switch status {
	case schedule.StatusNew:
		return "Новая"
	case schedule.StatusAvailable:
		return "Доступна"
	case schedule.StatusOverdue:
		return "Просрочена"
	case schedule.StatusInProgress:
		return "В работе"
	case schedule.StatusCompleted:
		return "Выполнена"
	case schedule.StatusClosedWithPhoto:
		return "Закрыта с фото"
	default:
		return string(status)
	}
}
