package sheetsync

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// NewGoogleServices authorizes the Sheets and Drive clients with a service
// account key file.
func NewGoogleServices(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*sheets.Service, *drive.Service, error) {
	withScopes := func(scopes ...string) []option.ClientOption {
		o := []option.ClientOption{option.WithCredentialsFile(credentialsFile), option.WithScopes(scopes...)}
		return append(o, opts...)
	}

	sheetsSvc, err := sheets.NewService(ctx, withScopes(sheets.SpreadsheetsScope, drive.DriveScope)...)
	if err != nil {
		return nil, nil, fmt.Errorf("sheets client: %w", err)
	}
	driveSvc, err := drive.NewService(ctx, withScopes(drive.DriveScope)...)
	if err != nil {
		return nil, nil, fmt.Errorf("drive client: %w", err)
	}
	return sheetsSvc, driveSvc, nil
}

// GoogleSheet is one tab of a Google spreadsheet.
type GoogleSheet struct {
	svc           *sheets.Service
	spreadsheetID string
	title         string
}

// NewGoogleSheet binds the tab called title, or the first tab when title is
// empty.
func NewGoogleSheet(ctx context.Context, svc *sheets.Service, spreadsheetID, title string) (*GoogleSheet, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("sheetsync: spreadsheet id is required")
	}
	if title == "" {
		ss, err := svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("open spreadsheet %s: %w", spreadsheetID, err)
		}
		if len(ss.Sheets) == 0 || ss.Sheets[0].Properties == nil {
			return nil, fmt.Errorf("spreadsheet %s has no sheets", spreadsheetID)
		}
		title = ss.Sheets[0].Properties.Title
	}
	return &GoogleSheet{svc: svc, spreadsheetID: spreadsheetID, title: title}, nil
}

// Title is the bound tab name.
func (g *GoogleSheet) Title() string { return g.title }

func (g *GoogleSheet) Column(ctx context.Context, col int) ([]string, error) {
	letter := ColumnLetter(col)
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, g.a1(letter+":"+letter)).
		MajorDimension("COLUMNS").
		ValueRenderOption("FORMULA").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	out := make([]string, len(resp.Values[0]))
	for i, v := range resp.Values[0] {
		out[i] = fmt.Sprint(v)
	}
	return out, nil
}

func (g *GoogleSheet) AppendRaw(ctx context.Context, row []string) error {
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}
	_, err := g.svc.Spreadsheets.Values.Append(g.spreadsheetID, g.a1("A1"), &sheets.ValueRange{
		Values: [][]interface{}{values},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (g *GoogleSheet) UpdateParsed(ctx context.Context, cells []Cell) error {
	data := make([]*sheets.ValueRange, 0, len(cells))
	for _, c := range cells {
		data = append(data, &sheets.ValueRange{
			Range:  g.a1(fmt.Sprintf("%s%d", ColumnLetter(c.Col), c.Row)),
			Values: [][]interface{}{{c.Value}},
		})
	}
	_, err := g.svc.Spreadsheets.Values.BatchUpdate(g.spreadsheetID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}).Context(ctx).Do()
	return err
}

func (g *GoogleSheet) a1(ref string) string {
	return "'" + strings.ReplaceAll(g.title, "'", "''") + "'!" + ref
}

// ColumnLetter converts a 1-based column index to A1 notation.
func ColumnLetter(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}
