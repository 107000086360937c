package discord

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListGuildMembersPaginates(t *testing.T) {
	pages := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		if pages == 1 {
			assert.Empty(t, r.URL.Query().Get("after"))
			var b strings.Builder
			b.WriteString("[")
			for i := 0; i < 1000; i++ {
				if i > 0 {
					b.WriteString(",")
				}
				// Gateway payloads can carry member objects without a user.
				if i == 999 {
					b.WriteString(`{"roles":[]}`)
				} else {
					fmt.Fprintf(&b, `{"user":{"id":"%d"},"roles":[]}`, 100000000000000000+i)
				}
			}
			b.WriteString("]")
			w.Write([]byte(b.String()))
			return
		}
		assert.Equal(t, "100000000000000998", r.URL.Query().Get("after"))
		w.Write([]byte(`[{"user":{"id":"222222222222222222"},"roles":[]}]`))
	}))
	defer server.Close()

	c := NewBotClient("test-token")
	c.APIBaseURL = server.URL

	members, err := c.ListGuildMembers(context.Background(), "100000000000000001")
	assert.NoError(t, err)
	assert.Len(t, members, 1001)
	assert.Equal(t, 2, pages)
}

func TestListGuildMembersAllNilUsersStopsPaging(t *testing.T) {
	pages := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		var b strings.Builder
		b.WriteString("[")
		for i := 0; i < 1000; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(`{"roles":[]}`)
		}
		b.WriteString("]")
		w.Write([]byte(b.String()))
	}))
	defer server.Close()

	c := NewBotClient("test-token")
	c.APIBaseURL = server.URL

	members, err := c.ListGuildMembers(context.Background(), "100000000000000001")
	assert.NoError(t, err)
	assert.Len(t, members, 1000)
	assert.Equal(t, 1, pages, "no usable cursor must end the scan")
}
