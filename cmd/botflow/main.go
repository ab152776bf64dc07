package main

import (
	_ "embed"
	"log"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/botflow/core/bootstrap"
	"github.com/m3rciful/botflow/core/cmd"
	"github.com/m3rciful/botflow/core/dispatch"
)

//go:embed locales.yaml
var locales []byte

func main() {
	err := cmd.Execute(cmd.Options{
		Use:               "botflow",
		Short:             "Demo bot built on the botflow pipeline",
		DefaultConfigPath: "config.yaml",
		Commands: []tele.Command{
			{Text: "start", Description: "Say hello"},
			{Text: "signup", Description: "Introduce yourself"},
		},
		Translations: locales,
		Handler: func(*bootstrap.Result) (dispatch.Handler, error) {
			return buildHandler()
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
