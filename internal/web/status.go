package web

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

type SeasonRow struct {
	ID      string
	Code    string
	Status  string
	Members int
	Games   int
}

type GameRow struct {
	ID       string
	SeasonID string
	Status   string
	Turns    int
	Resolved int
}

// Status renders the scheduler's ops page: every live season and game with
// its relay progress.
func Status(seasons []SeasonRow, games []GameRow) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Sketch Relay</title>
  </head>
  <body>
    <main>
      <h1>Sketch Relay scheduler</h1>
      <h2>Seasons</h2>
      <table border="1" cellpadding="4">
        <tr><th>ID</th><th>Code</th><th>Status</th><th>Members</th><th>Games</th></tr>
`); err != nil {
			return err
		}
		for _, season := range seasons {
			_, err := fmt.Fprintf(w, "        <tr><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%d</td></tr>\n",
				templ.EscapeString(season.ID), templ.EscapeString(season.Code),
				templ.EscapeString(season.Status), season.Members, season.Games)
			if err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `      </table>
      <h2>Games</h2>
      <table border="1" cellpadding="4">
        <tr><th>ID</th><th>Season</th><th>Status</th><th>Resolved</th></tr>
`); err != nil {
			return err
		}
		for _, game := range games {
			_, err := fmt.Fprintf(w, "        <tr><td>%s</td><td>%s</td><td>%s</td><td>%d/%d</td></tr>\n",
				templ.EscapeString(game.ID), templ.EscapeString(game.SeasonID),
				templ.EscapeString(game.Status), game.Resolved, game.Turns)
			if err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `      </table>
    </main>
  </body>
</html>
`)
		return err
	})
}
