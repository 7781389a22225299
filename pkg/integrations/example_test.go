package integrations_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/matzehuels/pmux/pkg/cache"
	"github.com/matzehuels/pmux/pkg/integrations"
)

func ExampleClient_Cached() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"pnpm","dist-tags":{"latest":"9.1.0"}}`)
	}))
	defer srv.Close()

	client := integrations.NewClient(cache.NewNullCache(), "example:", time.Hour, nil)

	var doc struct {
		Name     string            `json:"name"`
		DistTags map[string]string `json:"dist-tags"`
	}
	err := client.Cached(context.Background(), "pnpm", false, &doc, func() error {
		return client.Get(context.Background(), srv.URL, &doc)
	})
	fmt.Println(doc.Name, doc.DistTags["latest"], err)
	// Output:
	// pnpm 9.1.0 <nil>
}
