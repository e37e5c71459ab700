package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchd-io/punchd/internal/core"
	"github.com/punchd-io/punchd/internal/domain/model"
)

func TestNewClientRequiresURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "写得朴素一点", req["prompt"])
		assert.Equal(t, "daily", req["period"])
		assert.Equal(t, "示例公司 后端开发", req["job_info"])

		fmt.Fprint(w, `{"content":"  今天继续推进接口联调。  "}`)
	}))
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL, Token: "secret"})
	require.NoError(t, err)

	content, err := client.Generate(context.Background(), core.GenerateParams{
		Prompt:  "写得朴素一点",
		Period:  model.ReportDaily,
		JobInfo: "示例公司 后端开发",
	})
	require.NoError(t, err)
	assert.Equal(t, "今天继续推进接口联调。", content)
}

func TestGenerateWithoutToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"content":"body"}`)
	}))
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL})
	require.NoError(t, err)

	content, err := client.Generate(context.Background(), core.GenerateParams{})
	require.NoError(t, err)
	assert.Equal(t, "body", content)
}

func TestGenerateErrors(t *testing.T) {
	t.Parallel()

	t.Run("upstream failure", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}))
		defer server.Close()

		client, err := NewClient(Config{URL: server.URL})
		require.NoError(t, err)

		_, err = client.Generate(context.Background(), core.GenerateParams{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
	})

	t.Run("blank content", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"content":"   "}`)
		}))
		defer server.Close()

		client, err := NewClient(Config{URL: server.URL})
		require.NoError(t, err)

		_, err = client.Generate(context.Background(), core.GenerateParams{})
		assert.Error(t, err)
	})
}

func TestStripMarkdown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text unchanged", "今天继续推进接口联调。", "今天继续推进接口联调。"},
		{"heading", "# 本周总结\n完成了联调", "本周总结\n完成了联调"},
		{"bold and italic", "完成了**核心模块**的*单元测试*", "完成了核心模块的单元测试"},
		{"list markers", "- 联调接口\n- 修复缺陷\n1. 部署上线", "联调接口\n修复缺陷\n部署上线"},
		{"inline code and link", "调通了 `POST /v1/save`，详见[文档](https://example.com)", "调通了 POST /v1/save，详见文档"},
		{"code fence keeps body", "```go\nfmt.Println(1)\n```", "fmt.Println(1)"},
		{"blockquote and html", "> 备注\n<b>加粗</b>内容", "备注\n加粗内容"},
		{"collapses blank runs", "第一段\n\n\n\n第二段", "第一段\n\n第二段"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, stripMarkdown(tc.in))
		})
	}
}
