// Command sdbot runs the Stable Diffusion Telegram bot.
package main

import (
	"log"

	"github.com/m3rciful/sdbot/core/cmd"
	"github.com/m3rciful/sdbot/internal/app"
	"github.com/m3rciful/sdbot/internal/config"
)

func main() {
	err := cmd.Run(cmd.Options{
		DefaultConfigPath: "configs/config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: app.Bootstrap,
	})
	if err != nil {
		log.Fatal(err)
	}
}
