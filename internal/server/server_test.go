package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/eroom/internal/audit/domain"
	auditrepo "github.com/smallbiznis/eroom/internal/audit/repository"
	auditservice "github.com/smallbiznis/eroom/internal/audit/service"
	"github.com/smallbiznis/eroom/internal/clock"
	"github.com/smallbiznis/eroom/internal/config"
	contractdomain "github.com/smallbiznis/eroom/internal/contract/domain"
	contractrepo "github.com/smallbiznis/eroom/internal/contract/repository"
	contractservice "github.com/smallbiznis/eroom/internal/contract/service"
	coupondomain "github.com/smallbiznis/eroom/internal/coupon/domain"
	couponrepo "github.com/smallbiznis/eroom/internal/coupon/repository"
	couponservice "github.com/smallbiznis/eroom/internal/coupon/service"
	customdiscountdomain "github.com/smallbiznis/eroom/internal/customdiscount/domain"
	customdiscountrepo "github.com/smallbiznis/eroom/internal/customdiscount/repository"
	customdiscountservice "github.com/smallbiznis/eroom/internal/customdiscount/service"
	"github.com/smallbiznis/eroom/internal/errs"
	notificationdomain "github.com/smallbiznis/eroom/internal/notification/domain"
	notificationrepo "github.com/smallbiznis/eroom/internal/notification/repository"
	notificationservice "github.com/smallbiznis/eroom/internal/notification/service"
	"github.com/smallbiznis/eroom/internal/observability"
	pricingservice "github.com/smallbiznis/eroom/internal/pricing/service"
	"github.com/smallbiznis/eroom/internal/providers/pdf"
	"github.com/smallbiznis/eroom/internal/providers/sms"
	roomdomain "github.com/smallbiznis/eroom/internal/room/domain"
	roomrepo "github.com/smallbiznis/eroom/internal/room/repository"
	roomservice "github.com/smallbiznis/eroom/internal/room/service"
	"github.com/smallbiznis/eroom/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testServer struct {
	srv       *Server
	db        *gorm.DB
	genID     *snowflake.Node
	contracts contractdomain.Repository
	coupons   coupondomain.Repository
	room      roomdomain.Room
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.OpenDB(t,
		&roomdomain.Room{},
		&coupondomain.Coupon{},
		&contractdomain.Contract{},
		&contractdomain.ContractRequest{},
		&auditdomain.StatusHistory{},
		&customdiscountdomain.CustomDiscount{},
		&notificationdomain.Template{},
		&notificationdomain.Log{},
	)
	policy, err := config.NewStaticPricingPolicy(config.DefaultPricingPolicy())
	require.NoError(t, err)

	ts := &testServer{
		db:        db,
		genID:     testutil.Node(t),
		contracts: contractrepo.Provide(),
		coupons:   couponrepo.Provide(),
		room:      roomdomain.Room{ID: 100, BranchName: "강남점", Name: "301", Price: 500000, Deposit: 500000, Type: roomdomain.RoomTypeMonthly, Status: roomdomain.RoomStatusAvailable},
	}
	roomRepo := roomrepo.Provide()
	require.NoError(t, roomRepo.Insert(context.Background(), db, &ts.room))

	log := zap.NewNop()
	cfg := config.Config{SMS: config.SMSConfig{DefaultBranchName: "이룸 스튜디오"}}
	fakeClock := clock.NewFakeClock(time.Date(2025, time.September, 1, 10, 0, 0, 0, time.UTC))

	rooms := roomservice.NewService(roomservice.Params{DB: db, Log: log, Repo: roomRepo})
	discounts := customdiscountservice.NewService(customdiscountservice.Params{
		DB:        db,
		Log:       log,
		GenID:     ts.genID,
		Repo:      customdiscountrepo.Provide(),
		Contracts: ts.contracts,
	})
	pricing := pricingservice.NewService(pricingservice.Params{
		DB:        db,
		Log:       log,
		Clock:     fakeClock,
		Policy:    policy,
		Rooms:     rooms,
		Coupons:   ts.coupons,
		Discounts: discounts,
	})
	history := auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: ts.genID, Repo: auditrepo.Provide()})
	notifications := notificationservice.NewService(notificationservice.Params{
		DB:        db,
		Log:       log,
		Config:    cfg,
		Clock:     fakeClock,
		Policy:    policy,
		GenID:     ts.genID,
		Repo:      notificationrepo.Provide(),
		Provider:  sms.NewStub(log),
		Contracts: ts.contracts,
		Rooms:     rooms,
		Pricing:   pricing,
	})
	_, err = notifications.SeedTemplates(context.Background())
	require.NoError(t, err)

	contracts := contractservice.NewService(contractservice.Params{
		DB:       db,
		Log:      log,
		Config:   cfg,
		Clock:    fakeClock,
		Policy:   policy,
		GenID:    ts.genID,
		Repo:     ts.contracts,
		Pricing:  pricing,
		Rooms:    rooms,
		Coupons:  ts.coupons,
		Audit:    history,
		Notifier: notifications,
	})

	ts.srv = NewServer(ServerParams{
		Gin:           NewEngine(observability.Config{}, cfg, nil),
		Cfg:           cfg,
		Contracts:     contracts,
		Pricing:       pricing,
		Coupons:       couponservice.NewService(couponservice.Params{DB: db, Log: log, GenID: ts.genID, Repo: ts.coupons}),
		Discounts:     discounts,
		Notifications: notifications,
		History:       history,
		PDF:           pdf.New(""),
	})
	return ts
}

func (ts *testServer) insertContract(t *testing.T) *contractdomain.Contract {
	t.Helper()
	c := &contractdomain.Contract{
		ID:          ts.genID.Generate(),
		RoomID:      ts.room.ID,
		TenantName:  "김이룸",
		TenantPhone: "010-1234-5678",
		StartDate:   time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		Months:      12,
		Price:       450000,
		Deposit:     500000,
		PaymentDay:  1,
		Status:      contractdomain.StatusActive,
	}
	require.NoError(t, ts.contracts.Insert(context.Background(), ts.db, c))
	return c
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

func TestQuoteContract(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/contracts/quote", gin.H{
		"room_id":    "100",
		"months":     12,
		"start_date": "2025-09-01",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[envelope[struct {
		Breakdown struct {
			BasePrice            int64 `json:"base_price"`
			MonthlyPromoDiscount int64 `json:"monthly_promo_discount"`
			RecurringPrice       int64 `json:"recurring_price"`
		} `json:"breakdown"`
		Coupon couponSummary `json:"coupon"`
	}]](t, rec)
	assert.Equal(t, int64(500000), resp.Data.Breakdown.BasePrice)
	assert.Equal(t, int64(50000), resp.Data.Breakdown.MonthlyPromoDiscount)
	assert.Equal(t, int64(450000), resp.Data.Breakdown.RecurringPrice)
	assert.False(t, resp.Data.Coupon.Applied)
}

func TestQuoteContractRejectsBadDate(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/contracts/quote", gin.H{
		"room_id":    "100",
		"months":     12,
		"start_date": "09/01/2025",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[errorEnvelope](t, rec)
	assert.Equal(t, "validation_error", resp.Error.Type)
	require.Len(t, resp.Error.Errors, 1)
	assert.Equal(t, "start_date", resp.Error.Errors[0].Field)
}

func TestCreateContractRecordsActor(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/contracts", gin.H{
		"room_id":      "100",
		"months":       6,
		"start_date":   "2025-09-10",
		"payment_day":  10,
		"tenant_name":  "김이룸",
		"tenant_phone": "010-1234-5678",
	}, HeaderActorID, "user-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[envelope[contractdomain.Contract]](t, rec)
	assert.Equal(t, contractdomain.StatusRequested, created.Data.Status)

	rec = ts.do(t, http.MethodGet, "/admin/contracts/"+created.Data.ID.String()+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	history := decode[envelope[[]auditdomain.StatusHistory]](t, rec)
	require.Len(t, history.Data, 1)
	row := history.Data[0]
	assert.Equal(t, "requested", row.NewStatus)
	assert.Equal(t, auditdomain.ActorTypeUser, row.ActorType)
	require.NotNil(t, row.ActorID)
	assert.Equal(t, "user-1", *row.ActorID)
	assert.Equal(t, sourceWeb, row.Source)
}

func TestGetContractNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/contracts/999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode[errorEnvelope](t, rec)
	assert.Equal(t, "contract_not_found", resp.Error.Code)

	rec = ts.do(t, http.MethodGet, "/api/contracts/not-a-number", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateCoupon(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, ts.coupons.Insert(ctx, ts.db, &coupondomain.Coupon{
		ID:            ts.genID.Generate(),
		Code:          "WELCOME",
		DiscountType:  coupondomain.DiscountTypeFixed,
		DiscountValue: 10000,
		Cycle:         coupondomain.CycleOnce,
		StackPolicy:   coupondomain.StackWithMonthlyPromo,
		ValidFrom:     time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil:    time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC),
		IsActive:      true,
	}))
	require.NoError(t, ts.coupons.Insert(ctx, ts.db, &coupondomain.Coupon{
		ID:            ts.genID.Generate(),
		Code:          "SUMMER",
		DiscountType:  coupondomain.DiscountTypeFixed,
		DiscountValue: 10000,
		Cycle:         coupondomain.CycleOnce,
		StackPolicy:   coupondomain.StackWithMonthlyPromo,
		ValidFrom:     time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil:    time.Date(2025, time.August, 31, 0, 0, 0, 0, time.UTC),
		IsActive:      true,
	}))

	t.Run("valid", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/coupons/validate", gin.H{
			"room_id":     "100",
			"months":      12,
			"start_date":  "2025-09-01",
			"coupon_code": "welcome",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[envelope[validateCouponResponse]](t, rec)
		assert.True(t, resp.Data.Valid)
		assert.Equal(t, "WELCOME", resp.Data.Code)
		require.NotNil(t, resp.Data.Breakdown)
		assert.Equal(t, int64(10000), resp.Data.Breakdown.CouponDiscount)
	})

	t.Run("expired", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/coupons/validate", gin.H{
			"room_id":     "100",
			"months":      12,
			"start_date":  "2025-09-01",
			"coupon_code": "SUMMER",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[envelope[validateCouponResponse]](t, rec)
		assert.False(t, resp.Data.Valid)
		assert.Equal(t, "coupon_expired", resp.Data.Error)
		assert.NotEmpty(t, resp.Data.Reason)
		assert.Nil(t, resp.Data.Breakdown)
	})

	t.Run("missing code", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/coupons/validate", gin.H{"room_id": "100", "months": 12})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decode[errorEnvelope](t, rec)
		require.Len(t, resp.Error.Errors, 1)
		assert.Equal(t, "coupon_code", resp.Error.Errors[0].Field)
	})
}

func TestTerminationNoticeFlow(t *testing.T) {
	ts := newTestServer(t)
	contract := ts.insertContract(t)
	base := "/api/contracts/" + contract.ID.String()

	rec := ts.do(t, http.MethodGet, "/admin/contracts/"+contract.ID.String()+"/termination-notice.pdf", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[errorEnvelope](t, rec)
	assert.Equal(t, "business_rule_violation", resp.Error.Type)
	assert.Equal(t, "해지 신청 내역이 없는 계약입니다.", resp.Error.Message)

	rec = ts.do(t, http.MethodPost, base+"/termination", gin.H{
		"termination_date":                 "2025-12-01",
		"termination_confirmation_checked": true,
		"reason":                           "이사",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, base+"/termination", gin.H{"termination_confirmation_checked": true})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodGet, "/admin/contracts/"+contract.ID.String()+"/termination-notice.pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "termination-notice-"+contract.ID.String())
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = ts.do(t, http.MethodGet, "/admin/contracts/"+contract.ID.String()+"/requests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	requests := decode[envelope[[]contractdomain.ContractRequest]](t, rec)
	require.Len(t, requests.Data, 1)
	assert.Equal(t, contractdomain.RequestTypeTermination, requests.Data[0].Type)
}

func TestAdminStatusChangeUsesAdminActor(t *testing.T) {
	ts := newTestServer(t)
	contract := ts.insertContract(t)
	path := "/admin/contracts/" + contract.ID.String()

	rec := ts.do(t, http.MethodPatch, path+"/status", gin.H{"status": "TERMINATED", "reason": "정리"}, HeaderActorID, "admin-3")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[envelope[contractdomain.Contract]](t, rec)
	assert.Equal(t, contractdomain.StatusTerminated, updated.Data.Status)

	rec = ts.do(t, http.MethodPatch, path+"/status", gin.H{"status": "active"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var rows []auditdomain.StatusHistory
	require.NoError(t, ts.db.Where("contract_id = ?", contract.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, auditdomain.ActorTypeAdmin, rows[0].ActorType)
	assert.Equal(t, sourceAdmin, rows[0].Source)
}

func TestCustomDiscountRoutes(t *testing.T) {
	ts := newTestServer(t)
	contract := ts.insertContract(t)
	path := "/admin/contracts/" + contract.ID.String() + "/discounts"

	rec := ts.do(t, http.MethodPut, path+"/2025-10", gin.H{"amount": 50000, "reason": "수리 지연"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPut, path+"/2025-13", gin.H{"amount": 50000})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[envelope[[]customdiscountdomain.CustomDiscount]](t, rec)
	require.Len(t, items.Data, 1)
	assert.Equal(t, int64(50000), items.Data[0].Amount)

	rec = ts.do(t, http.MethodDelete, path+"/2025-10", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodDelete, path+"/2025-10", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSMSRoutes(t *testing.T) {
	ts := newTestServer(t)
	contract := ts.insertContract(t)

	rec := ts.do(t, http.MethodGet, "/admin/sms/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	templates := decode[envelope[[]notificationdomain.TemplateView]](t, rec)
	assert.NotEmpty(t, templates.Data)

	rec = ts.do(t, http.MethodPost, "/admin/sms/send", gin.H{
		"contract_id": contract.ID.String(),
		"content":     "관리비 안내 드립니다.",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sent := decode[envelope[notificationdomain.Result]](t, rec)
	assert.Equal(t, notificationdomain.ResultDelivered, sent.Data.Status)

	rec = ts.do(t, http.MethodGet, "/admin/sms/logs?contract_id="+contract.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	logs := decode[envelope[[]notificationdomain.Log]](t, rec)
	require.Len(t, logs.Data, 1)
	assert.Equal(t, notificationdomain.EventManual, logs.Data[0].Type)
	assert.Equal(t, "01012345678", logs.Data[0].Receiver)

	rec = ts.do(t, http.MethodGet, "/admin/sms/logs?contract_id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransientErrorsReturnRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewEngine(observability.Config{}, config.Config{}, nil)
	r.GET("/boom", func(c *gin.Context) {
		AbortWithError(c, errs.Transient(errors.New("connection reset")))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestToSnake(t *testing.T) {
	cases := map[string]string{
		"RoomID":        "room_id",
		"Months":        "months",
		"PaymentDay":    "payment_day",
		"HTTPAddr":      "http_addr",
		"CouponCode":    "coupon_code",
		"TenantPhone":   "tenant_phone",
		"DiscountValue": "discount_value",
	}
	for in, want := range cases {
		assert.Equal(t, want, toSnake(in), in)
	}
}
