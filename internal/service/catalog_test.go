package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"ainews/internal/service"
	"ainews/internal/storage"
	"ainews/internal/storage/mocks"

	"go.uber.org/mock/gomock"
)

func init() {
	// Set default logger to discard output for cleaner test output
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// testContext returns a context for testing.
func testContext() context.Context {
	return context.Background()
}

func intPtr(v int) *int {
	return &v
}

func recordIDs(records []storage.Record) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func newService(ctrl *gomock.Controller) (service.CatalogService, *mocks.MockRecordStore) {
	store := mocks.NewMockRecordStore(ctrl)
	return service.NewCatalogService(store, service.DefaultOptions()), store
}

func TestNewCatalogService(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := service.NewCatalogService(mocks.NewMockRecordStore(ctrl), service.Options{})
	if svc == nil {
		t.Fatal("NewCatalogService() returned nil")
	}
}

func TestCatalogService_UniqueTags(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tests := []struct {
		name      string
		mockSetup func(*mocks.MockRecordStore)
		want      []string
		wantErr   error
	}{
		{
			name: "aggregates and sorts",
			mockSetup: func(m *mocks.MockRecordStore) {
				m.EXPECT().TagFields(gomock.Any()).Return([]string{"AI, Policy", "Robotics"}, nil)
			},
			want: []string{"AI", "Policy", "Robotics"},
		},
		{
			name: "empty store",
			mockSetup: func(m *mocks.MockRecordStore) {
				m.EXPECT().TagFields(gomock.Any()).Return([]string{}, nil)
			},
			want: []string{},
		},
		{
			name: "store unavailable propagates",
			mockSetup: func(m *mocks.MockRecordStore) {
				m.EXPECT().TagFields(gomock.Any()).Return(nil, fmt.Errorf("%w: disk gone", storage.ErrStoreUnavailable))
			},
			wantErr: service.ErrStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newService(ctrl)
			tt.mockSetup(store)

			got, err := svc.UniqueTags(testContext())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("UniqueTags() error = %v, want %v", err, tt.wantErr)
				}
				if got != nil {
					t.Errorf("UniqueTags() returned partial result %q on error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("UniqueTags() unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("UniqueTags() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCatalogService_Latest(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	five := []storage.Record{{ID: 9}, {ID: 8}, {ID: 7}, {ID: 6}, {ID: 5}}

	tests := []struct {
		name      string
		req       service.LatestRequest
		mockSetup func(*mocks.MockRecordStore)
		wantIDs   []int64
		wantErr   error
	}{
		{
			name: "default limit is five",
			req:  service.LatestRequest{},
			mockSetup: func(m *mocks.MockRecordStore) {
				m.EXPECT().Latest(gomock.Any(), 5).Return(five, nil)
			},
			wantIDs: []int64{9, 8, 7, 6, 5},
		},
		{
			name: "explicit limit",
			req:  service.LatestRequest{Limit: intPtr(2)},
			mockSetup: func(m *mocks.MockRecordStore) {
				m.EXPECT().Latest(gomock.Any(), 2).Return(five[:2], nil)
			},
			wantIDs: []int64{9, 8},
		},
		{
			name: "limit clamped to max",
			req:  service.LatestRequest{Limit: intPtr(10000)},
			mockSetup: func(m *mocks.MockRecordStore) {
				m.EXPECT().Latest(gomock.Any(), 100).Return(five, nil)
			},
			wantIDs: []int64{9, 8, 7, 6, 5},
		},
		{
			name:      "zero limit does not touch the store",
			req:       service.LatestRequest{Limit: intPtr(0)},
			mockSetup: func(m *mocks.MockRecordStore) {},
			wantIDs:   []int64{},
		},
		{
			name:      "negative limit rejected before store access",
			req:       service.LatestRequest{Limit: intPtr(-1)},
			mockSetup: func(m *mocks.MockRecordStore) {},
			wantErr:   service.ErrInvalidInput,
		},
		{
			name: "nil store result becomes empty slice",
			req:  service.LatestRequest{},
			mockSetup: func(m *mocks.MockRecordStore) {
				m.EXPECT().Latest(gomock.Any(), 5).Return(nil, nil)
			},
			wantIDs: []int64{},
		},
		{
			name: "store unavailable",
			req:  service.LatestRequest{},
			mockSetup: func(m *mocks.MockRecordStore) {
				m.EXPECT().Latest(gomock.Any(), 5).Return(nil, storage.ErrStoreUnavailable)
			},
			wantErr: service.ErrStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newService(ctrl)
			tt.mockSetup(store)

			got, err := svc.Latest(testContext(), tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Latest() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Latest() unexpected error: %v", err)
			}
			if got == nil {
				t.Fatal("Latest() returned nil slice")
			}
			if !reflect.DeepEqual(recordIDs(got), tt.wantIDs) {
				t.Errorf("Latest() ids = %v, want %v", recordIDs(got), tt.wantIDs)
			}
		})
	}
}

func TestCatalogService_ByTags(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tests := []struct {
		name      string
		tags      []string
		mockSetup func(*mocks.MockRecordStore)
		wantIDs   []int64
		wantErr   error
	}{
		{
			name: "passes tags through",
			tags: []string{"AI"},
			mockSetup: func(m *mocks.MockRecordStore) {
				m.EXPECT().ByTags(gomock.Any(), []string{"AI"}).Return([]storage.Record{{ID: 1, Tags: "AI, Policy"}}, nil)
			},
			wantIDs: []int64{1},
		},
		{
			name:      "empty request short-circuits",
			tags:      []string{},
			mockSetup: func(m *mocks.MockRecordStore) {},
			wantIDs:   []int64{},
		},
		{
			name:      "nil request short-circuits",
			tags:      nil,
			mockSetup: func(m *mocks.MockRecordStore) {},
			wantIDs:   []int64{},
		},
		{
			name: "whitespace tag reaches store",
			tags: []string{" "},
			mockSetup: func(m *mocks.MockRecordStore) {
				m.EXPECT().ByTags(gomock.Any(), []string{" "}).Return([]storage.Record{{ID: 1, Tags: "AI, Policy", Title: "a b"}}, nil)
			},
			wantIDs: []int64{1},
		},
		{
			name: "empty tag reaches store",
			tags: []string{"", "   "},
			mockSetup: func(m *mocks.MockRecordStore) {
				m.EXPECT().ByTags(gomock.Any(), []string{"", "   "}).Return([]storage.Record{{ID: 3}}, nil)
			},
			wantIDs: []int64{3},
		},
		{
			name: "exact duplicates collapsed, raw spacing kept",
			tags: []string{"AI", "", "AI", " Policy", ""},
			mockSetup: func(m *mocks.MockRecordStore) {
				m.EXPECT().ByTags(gomock.Any(), []string{"AI", "", " Policy"}).Return([]storage.Record{}, nil)
			},
			wantIDs: []int64{},
		},
		{
			name: "result ordered by id and deduplicated",
			tags: []string{"AI", "Robotics"},
			mockSetup: func(m *mocks.MockRecordStore) {
				m.EXPECT().ByTags(gomock.Any(), gomock.Any()).Return([]storage.Record{{ID: 4}, {ID: 2}, {ID: 4}}, nil)
			},
			wantIDs: []int64{2, 4},
		},
		{
			name:      "too many tags rejected",
			tags:      make([]string, 401),
			mockSetup: func(m *mocks.MockRecordStore) {},
			wantErr:   service.ErrInvalidInput,
		},
		{
			name:      "oversized tag rejected",
			tags:      []string{strings.Repeat("x", 4097)},
			mockSetup: func(m *mocks.MockRecordStore) {},
			wantErr:   service.ErrInvalidInput,
		},
		{
			name: "store failure propagates",
			tags: []string{"AI"},
			mockSetup: func(m *mocks.MockRecordStore) {
				m.EXPECT().ByTags(gomock.Any(), []string{"AI"}).Return(nil, storage.ErrStoreUnavailable)
			},
			wantErr: service.ErrStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newService(ctrl)
			tt.mockSetup(store)

			got, err := svc.ByTags(testContext(), tt.tags)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ByTags() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ByTags() unexpected error: %v", err)
			}
			if got == nil {
				t.Fatal("ByTags() returned nil slice")
			}
			if !reflect.DeepEqual(recordIDs(got), tt.wantIDs) {
				t.Errorf("ByTags() ids = %v, want %v", recordIDs(got), tt.wantIDs)
			}
		})
	}
}

func TestCatalogService_Search(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	battery := storage.Record{ID: 1, Title: "Solid-state cells", Description: "new battery chemistry"}
	math := storage.Record{ID: 2, Title: "math benchmark falls", Description: "olympiad problems"}

	tests := []struct {
		name      string
		keywords  []string
		mockSetup func(*mocks.MockRecordStore)
		want      []storage.Record
		wantErr   bool
		wantIs    error
	}{
		{
			name:     "matches in different fields each returned once",
			keywords: []string{"battery", "math"},
			mockSetup: func(m *mocks.MockRecordStore) {
				m.EXPECT().Search(gomock.Any(), []string{"battery", "math"}).Return([]storage.Record{math, battery, math}, nil)
			},
			want: []storage.Record{battery, math},
		},
		{
			name:      "empty request short-circuits",
			keywords:  []string{},
			mockSetup: func(m *mocks.MockRecordStore) {},
			want:      []storage.Record{},
		},
		{
			name:     "whitespace keyword reaches store",
			keywords: []string{" "},
			mockSetup: func(m *mocks.MockRecordStore) {
				m.EXPECT().Search(gomock.Any(), []string{" "}).Return([]storage.Record{math, battery}, nil)
			},
			want: []storage.Record{battery, math},
		},
		{
			name:      "term at length bound accepted",
			keywords:  []string{strings.Repeat("x", 4096)},
			mockSetup: func(m *mocks.MockRecordStore) {
				m.EXPECT().Search(gomock.Any(), gomock.Len(1)).Return([]storage.Record{}, nil)
			},
			want: []storage.Record{},
		},
		{
			name:      "invalid request never reaches store",
			keywords:  make([]string, 401),
			mockSetup: func(m *mocks.MockRecordStore) {},
			wantErr:   true,
			wantIs:    service.ErrInvalidInput,
		},
		{
			name:     "store failure propagates",
			keywords: []string{"battery"},
			mockSetup: func(m *mocks.MockRecordStore) {
				m.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, errors.New("no such table: news"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newService(ctrl)
			tt.mockSetup(store)

			got, err := svc.Search(testContext(), tt.keywords)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Search() expected error, got nil")
				}
				if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
					t.Errorf("Search() error = %v, want %v", err, tt.wantIs)
				}
				if got != nil {
					t.Errorf("Search() returned partial result on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Search() unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Search() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCatalogService_AppliesStoreTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockRecordStore(ctrl)
	svc := service.NewCatalogService(store, service.Options{Timeout: time.Second})

	store.EXPECT().TagFields(gomock.Any()).DoAndReturn(func(ctx context.Context) ([]string, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("store call should carry a deadline")
		}
		return []string{"AI"}, nil
	})

	if _, err := svc.UniqueTags(testContext()); err != nil {
		t.Fatalf("UniqueTags() error = %v", err)
	}
}

func TestCatalogService_Ping(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, store := newService(ctrl)
	store.EXPECT().Ping(gomock.Any()).Return(nil)
	store.EXPECT().Ping(gomock.Any()).Return(storage.ErrStoreUnavailable)

	if err := svc.Ping(testContext()); err != nil {
		t.Errorf("Ping() error = %v, want nil", err)
	}
	if err := svc.Ping(testContext()); !errors.Is(err, service.ErrStoreUnavailable) {
		t.Errorf("Ping() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestCatalogService_ConcurrentCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, store := newService(ctrl)
	store.EXPECT().Search(gomock.Any(), []string{"AI"}).Return([]storage.Record{{ID: 3}, {ID: 1}}, nil).Times(20)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.Search(testContext(), []string{"AI"})
			if err != nil {
				t.Errorf("Search() error = %v", err)
				return
			}
			if !reflect.DeepEqual(recordIDs(got), []int64{1, 3}) {
				t.Errorf("Search() ids = %v", recordIDs(got))
			}
		}()
	}
	wg.Wait()
}
