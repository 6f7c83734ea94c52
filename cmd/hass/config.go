package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chaabni/home-assistant/pubsub"
	"github.com/chaabni/home-assistant/services"
)

func config(path string, filenames []string) {
	if path != "config" && !strings.HasPrefix(path, "config/") {
		fmt.Println("Path must begin with 'config'")
		return
	}

	// concatenate files together
	data := &bytes.Buffer{}
	for _, filename := range filenames {
		f, err := os.Open(filename)
		if err != nil {
			fmt.Printf("Error opening %s: %s\n", filename, err)
			return
		}
		defer f.Close()
		_, err = io.Copy(data, f)
		if err != nil {
			fmt.Printf("Error reading %s: %s\n", filename, err)
			return
		}
		data.WriteByte('\n')
	}

	services.Setup("hass")
	if path == "config" {
		// the global config lives on the broker as a retained message
		fields := pubsub.Fields{
			"config": data.String(),
		}
		ev := pubsub.NewEvent("config", fields)
		ev.SetRetained(true)
		services.Publisher.Emit(ev)
	} else {
		// sub-configs live in the store, announced by a config event
		key := "hass/" + path
		services.SetupStore()
		if err := services.Stor.Set(key, data.String()); err != nil {
			fmt.Println("Error updating store:", err)
			return
		}
		fields := pubsub.Fields{
			"path": key,
		}
		ev := pubsub.NewEvent("config", fields)
		services.Publisher.Emit(ev)
	}
	fmt.Printf("Updated %s (%d bytes)\n", path, data.Len())
}
