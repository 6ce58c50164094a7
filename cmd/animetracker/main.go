// Command animetracker はアニメ視聴リストAPIのサーバー、ワーカー、マイグレーションを起動する。
//
//	animetracker [serve|migrate|worker|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/animetracker/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
