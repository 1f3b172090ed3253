package export

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kassabot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu        sync.Mutex
	failFor   map[models.Category]error
	fetchWait time.Duration

	sales     []models.SaleRecord
	returns   []models.ReturnRecord
	inventory []models.InventoryRecord
	employees []models.EmployeeRecord
}

func (f *fakeClient) err(c models.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchWait > 0 {
		time.Sleep(f.fetchWait)
	}
	return f.failFor[c]
}

func (f *fakeClient) FetchSales(ctx context.Context, date time.Time) ([]models.SaleRecord, error) {
	if err := f.err(models.CategorySales); err != nil {
		return nil, err
	}
	return f.sales, nil
}

func (f *fakeClient) FetchReturns(ctx context.Context, date time.Time) ([]models.ReturnRecord, error) {
	if err := f.err(models.CategoryReturns); err != nil {
		return nil, err
	}
	return f.returns, nil
}

func (f *fakeClient) FetchInventory(ctx context.Context) ([]models.InventoryRecord, error) {
	if err := f.err(models.CategoryInventory); err != nil {
		return nil, err
	}
	return f.inventory, nil
}

func (f *fakeClient) FetchEmployees(ctx context.Context) ([]models.EmployeeRecord, error) {
	if err := f.err(models.CategoryEmployees); err != nil {
		return nil, err
	}
	return f.employees, nil
}

type appendCall struct {
	section models.Section
	rows    int
}

type fakeSink struct {
	mu       sync.Mutex
	calls    []appendCall
	failures map[models.Section]int // remaining failures per section
}

func (f *fakeSink) AppendRows(ctx context.Context, section models.Section, rows []models.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures[section] > 0 {
		f.failures[section]--
		return errors.New("sink unavailable")
	}
	f.calls = append(f.calls, appendCall{section: section, rows: len(rows)})
	return nil
}

func (f *fakeSink) SpreadsheetURL() string { return "https://example.test/doc" }

func (f *fakeSink) sections() []models.Section {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Section, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.section)
	}
	return out
}

func newTestExporter(client *fakeClient, sink *fakeSink) *Exporter {
	retry := RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
	return NewExporter(client, sink, nil, nil, nil, retry, "", nil)
}

func fullClient() *fakeClient {
	return &fakeClient{
		sales:     []models.SaleRecord{{Date: "2026-08-31", ProductName: "Кофе", TotalAmount: 150}},
		returns:   []models.ReturnRecord{{Date: "2026-08-31", ProductName: "Чай", Amount: 90}},
		inventory: []models.InventoryRecord{{Name: "Кофе", Article: "A-1", Quantity: 10}},
		employees: []models.EmployeeRecord{{Name: "Иванов", ID: "e1", ChecksCount: 5}},
	}
}

func TestRunCycleAllCategoriesSucceed(t *testing.T) {
	client := fullClient()
	sink := &fakeSink{}
	exporter := newTestExporter(client, sink)

	cycle, err := exporter.RunCycle(context.Background(), time.Now())
	require.NoError(t, err)

	assert.True(t, cycle.Success)
	assert.Equal(t, 4, cycle.TotalRows())
	assert.Equal(t, []models.Section{
		models.SectionSales, models.SectionReturns,
		models.SectionInventory, models.SectionEmployees,
	}, sink.sections(), "sections are appended in the fixed category order")
}

func TestRunCycleIsolatesFailedCategory(t *testing.T) {
	client := fullClient()
	client.failFor = map[models.Category]error{
		models.CategoryEmployees: errors.New("boom"),
	}
	sink := &fakeSink{}
	exporter := newTestExporter(client, sink)

	cycle, err := exporter.RunCycle(context.Background(), time.Now())
	require.NoError(t, err)

	assert.False(t, cycle.Success, "one failed category fails the cycle")
	assert.Equal(t, []models.Category{models.CategoryEmployees}, cycle.FailedCategories())
	assert.Equal(t, []models.Section{
		models.SectionSales, models.SectionReturns, models.SectionInventory,
	}, sink.sections(), "employees section receives no rows")
}

func TestRunCycleSinkFailureIsCategoryFailure(t *testing.T) {
	client := fullClient()
	sink := &fakeSink{failures: map[models.Section]int{models.SectionSales: 10}}
	exporter := newTestExporter(client, sink)

	cycle, err := exporter.RunCycle(context.Background(), time.Now())
	require.NoError(t, err)

	assert.False(t, cycle.Success)
	assert.Equal(t, []models.Category{models.CategorySales}, cycle.FailedCategories())
	// remaining categories still appended
	assert.Equal(t, []models.Section{
		models.SectionReturns, models.SectionInventory, models.SectionEmployees,
	}, sink.sections())
}

func TestRunCycleRetriesTransientSinkFailure(t *testing.T) {
	client := fullClient()
	sink := &fakeSink{failures: map[models.Section]int{models.SectionSales: 1}}
	exporter := newTestExporter(client, sink)

	cycle, err := exporter.RunCycle(context.Background(), time.Now())
	require.NoError(t, err)

	assert.True(t, cycle.Success, "a single transient failure is retried away")
	assert.Equal(t, 4, len(sink.sections()))
}

func TestRunCycleRejectsConcurrentCaller(t *testing.T) {
	client := fullClient()
	client.fetchWait = 50 * time.Millisecond
	sink := &fakeSink{}
	exporter := newTestExporter(client, sink)

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(started)
		_, err := exporter.RunCycle(context.Background(), time.Now())
		assert.NoError(t, err)
		close(done)
	}()

	<-started
	time.Sleep(10 * time.Millisecond)
	_, err := exporter.RunCycle(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrBusy)
	<-done

	// the rejected caller appended nothing: exactly four appends happened
	assert.Equal(t, 4, len(sink.sections()))
}
