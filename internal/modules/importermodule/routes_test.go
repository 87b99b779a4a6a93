package importermodule

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/reelkit/reelkit/internal/apiroutes"
	"github.com/reelkit/reelkit/internal/modules/sourcelistmodule"
)

func TestStartImportRequiresSourceList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	apiroutes.ClearForTesting()

	r := gin.New()
	m := &Module{importer: NewImporter(testImporterConfig(), nil)}
	m.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/api/bins/0/import",
		bytes.NewBufferString(`{"path":"/media/library"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), sourcelistmodule.ErrNotInitialized.Error())
}
