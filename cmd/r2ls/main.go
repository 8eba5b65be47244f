// r2ls lists the contents of the configured bucket
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"photoserver/config"
	"photoserver/logutils"
	"photoserver/storage"
)

func main() {
	prefix := flag.String("prefix", "", "only list keys starting with this prefix")
	delimiter := flag.String("delimiter", "", "group keys into folders, usually /")
	limit := flag.Int("limit", storage.DefaultListLimit, "maximum number of keys")
	photos := flag.Bool("photos", false, "hide folder markers and album placeholders")
	urls := flag.Bool("urls", false, "print public URLs instead of keys")
	flag.Parse()

	cfg := config.Load()
	store, err := storage.NewObjectStore(storage.BucketFromConfig(cfg), cfg.PublicBaseURL+"/files")
	if err != nil {
		logutils.Log.Fatalf("Could not set up object storage: %v", err)
	}
	keys, err := store.List(context.Background(), *prefix, *delimiter, *limit)
	if err != nil {
		logutils.Log.Fatalf("Listing failed: %v", err)
	}
	if *photos {
		keys = storage.PhotoKeys(keys)
	}
	for _, key := range keys {
		if *urls {
			key = store.URLFor(key)
		}
		fmt.Fprintln(os.Stdout, key)
	}
	logutils.Log.Infof("%d objects", len(keys))
}
