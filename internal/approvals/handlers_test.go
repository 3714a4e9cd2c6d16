package approvals

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"lethex-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminApp(f *fixture, actorID uuid.UUID) *fiber.App {
	h := &Handlers{Engine: f.engine}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", map[string]interface{}{
			"user_id": actorID.String(),
			"name":    "Root",
			"role":    "admin",
		})
		return c.Next()
	})
	app.Post("/transactions/:id/approve", h.Approve)
	app.Post("/transactions/:id/reject", h.Reject)
	return app
}

func post(t *testing.T, app *fiber.App, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	return resp.StatusCode, out
}

func TestHandlers_ApproveSwap(t *testing.T) {
	f := setup(t)
	f.fund(t, "USDT", "100")
	req := f.request(t, domain.TxSwap, sym("USDT"), sym("BTC"), "40")
	app := adminApp(f, f.admin.ID)

	code, body := post(t, app, "/transactions/"+req.ID.String()+"/approve", `{"execution_price":"0.000023"}`)
	assert.Equal(t, 200, code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "0.00091080", f.balance(t, "BTC"))

	code, body = post(t, app, "/transactions/"+req.ID.String()+"/approve", `{"execution_price":"0.000023"}`)
	assert.Equal(t, 409, code)
	assert.Equal(t, "error", body["status"])
}

func TestHandlers_ApproveErrors(t *testing.T) {
	f := setup(t)
	f.fund(t, "BTC", "5")
	sell := f.request(t, domain.TxSell, sym("BTC"), nil, "6")
	swap := f.request(t, domain.TxSwap, sym("BTC"), sym("USDT"), "1")
	app := adminApp(f, f.admin.ID)

	code, _ := post(t, app, "/transactions/"+sell.ID.String()+"/approve", "")
	assert.Equal(t, 422, code)

	code, _ = post(t, app, "/transactions/"+swap.ID.String()+"/approve", `{}`)
	assert.Equal(t, 422, code)

	code, _ = post(t, app, "/transactions/not-a-uuid/approve", "")
	assert.Equal(t, 400, code)

	code, _ = post(t, app, "/transactions/"+uuid.NewString()+"/approve", "")
	assert.Equal(t, 404, code)

	code, _ = post(t, adminApp(f, uuid.New()), "/transactions/"+sell.ID.String()+"/approve", "")
	assert.Equal(t, 403, code)
}

func TestHandlers_Reject(t *testing.T) {
	f := setup(t)
	req := f.request(t, domain.TxBuy, nil, sym("XYZ"), "3")
	app := adminApp(f, f.admin.ID)

	code, body := post(t, app, "/transactions/"+req.ID.String()+"/reject", `{"reason":"duplicate"}`)
	assert.Equal(t, 200, code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "rejected", data["status"])
	assert.Equal(t, "absent", f.balance(t, "XYZ"))
}
