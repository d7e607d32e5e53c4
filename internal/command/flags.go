package command

import (
	"github.com/urfave/cli/v3"

	"metrix/internal/query"
)

func requestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "multiplier",
			Aliases: []string{"m"},
			Usage:   "size of the timespan window",
			Value:   1,
		},
		&cli.StringFlag{
			Name:    "timespan",
			Aliases: []string{"t"},
			Usage:   "minute, hour, day, week, month, quarter or year",
			Value:   string(query.Day),
		},
		&cli.StringFlag{
			Name:     "from",
			Usage:    "first date, YYYY-MM-DD",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "to",
			Usage:    "last date, YYYY-MM-DD",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "adjusted",
			Usage: "adjust for splits (--adjusted=false for raw prices)",
			Value: true,
		},
		&cli.StringFlag{
			Name:  "sort",
			Usage: "asc or desc by timestamp",
			Value: string(query.Asc),
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "maximum base aggregates per page",
			Value: query.MaxLimit,
		},
	}
}

// buildRequest turns the request flags plus ticker into a validated request.
func buildRequest(cmd *cli.Command, ticker string) (query.Request, error) {
	timespan, err := query.ParseTimespan(cmd.String("timespan"))
	if err != nil {
		return query.Request{}, err
	}
	sort, err := query.ParseSort(cmd.String("sort"))
	if err != nil {
		return query.Request{}, err
	}
	from, err := query.ParseDate(cmd.String("from"))
	if err != nil {
		return query.Request{}, err
	}
	to, err := query.ParseDate(cmd.String("to"))
	if err != nil {
		return query.Request{}, err
	}
	return query.New(ticker, cmd.Int("multiplier"), timespan, from, to,
		cmd.Bool("adjusted"), sort, cmd.Int("limit"))
}
