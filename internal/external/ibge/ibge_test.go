package ibge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/pkg/httputil"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

const sidraJSON = `[
 {"MN":"Unidade de Medida","V":"Valor","D2C":"Variável (Código)","D3N":"Mês","D4N":"Produto"},
 {"MN":"Toneladas","V":"166284501","D2C":"35","D3N":"janeiro 2025","D4N":"Soja (em grão)"},
 {"MN":"Hectares","V":"47342011","D2C":"109","D3N":"janeiro 2025","D4N":"Soja (em grão)"},
 {"MN":"Toneladas","V":"...","D2C":"35","D3N":"janeiro 2025","D4N":"Milho (em grão) 1ª safra"},
 {"MN":"Toneladas","V":"1000","D2C":"35","D3N":"janeiro 2025","D4N":"Mamona (baga)"}
]`

func TestFetch(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, sidraJSON)
	}))
	defer srv.Close()

	a := New(httputil.New(logger.Nop(), 5*time.Second).DisableRetry(), logger.Nop()).WithBaseURL(srv.URL)
	out, err := a.Fetch(context.Background(), collector.Window{}, collector.Options{})
	require.NoError(t, err)

	assert.Equal(t, "/values/t/6588/n1/all/v/35,36,109/p/last 1/c48/all", gotPath)

	data := out.(contracts.IBGEData)
	require.Len(t, data.Estimates, 2)
	assert.Equal(t, contracts.IBGEEstimate{
		Product: "soja", Variable: "producao", Period: "janeiro 2025", Value: 166284501, Unit: "Toneladas",
	}, data.Estimates[0])
	assert.Equal(t, "area_plantada", data.Estimates[1].Variable)
}

func TestParseRows_Errors(t *testing.T) {
	tests := map[string][]map[string]string{
		"header only":     {{"V": "Valor"}},
		"no tracked rows": {{"V": "Valor"}, {"V": "1", "D2C": "35", "D4N": "Mamona"}},
	}
	for name, rows := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRows(rows)
			assert.Equal(t, "parse", contracts.ErrorKind(err))
		})
	}
}
