package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli"

	"github.com/imkonsowa/taste-finder/completion"
	"github.com/imkonsowa/taste-finder/config"
	"github.com/imkonsowa/taste-finder/events"
	"github.com/imkonsowa/taste-finder/extraction"
	"github.com/imkonsowa/taste-finder/finder"
	"github.com/imkonsowa/taste-finder/geo"
	"github.com/imkonsowa/taste-finder/models"
	"github.com/imkonsowa/taste-finder/search"
	"github.com/imkonsowa/taste-finder/telemetry"
)

var version = "v0.1.0"

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config",
		Value: config.DefaultPath,
		Usage: "path to the yaml config file",
	},
	cli.BoolFlag{
		Name:  "geojson",
		Usage: "print results as a GeoJSON feature collection",
	},
}

var searchFlags = []cli.Flag{
	cli.StringFlag{Name: "food", Usage: "what you want to eat"},
	cli.StringFlag{Name: "location", Usage: "where to search"},
	cli.StringFlag{Name: "price", Usage: "price tier, one to four '$'"},
	cli.BoolFlag{Name: "open-now", Usage: "only places open right now"},
	cli.IntFlag{Name: "radius", Usage: "search radius in meters"},
}

type runtime struct {
	finder    *finder.Finder
	publisher events.Publisher
	greeting  string
}

func setup(c *cli.Context) (*runtime, error) {
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return nil, err
	}

	// keep stdout for results
	cfg.Log.Level = "warn"
	if _, _, err := telemetry.InitLogger(cfg.Log); err != nil {
		return nil, err
	}

	llm, err := completion.NewModel(cfg.LLM)
	if err != nil {
		return nil, err
	}

	opts := []completion.Option{completion.WithTemperature(cfg.LLM.Temperature)}
	if cfg.LLM.Provider != "" {
		opts = append(opts, completion.WithProvider(cfg.LLM.Provider))
	}

	extractor, err := extraction.New(cfg.Chat.Extraction)
	if err != nil {
		return nil, err
	}

	publisher, err := events.NewPublisher(cfg.Nats)
	if err != nil {
		return nil, err
	}

	f := finder.New(
		completion.NewOrchestrator(llm, opts...),
		extractor,
		search.NewClientFromConfig(cfg.Yelp),
		finder.WithPublisher(publisher),
		finder.WithContextMessages(cfg.Chat.ContextMessages),
	)

	return &runtime{finder: f, publisher: publisher, greeting: cfg.Chat.Greeting}, nil
}

func ask(c *cli.Context) error {
	text := strings.Join(c.Args(), " ")
	if strings.TrimSpace(text) == "" {
		return cli.NewExitError("usage: tastefinder ask <what you are craving>", 2)
	}

	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.publisher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := finder.NewSession("cli", rt.greeting)
	evts, err := rt.finder.Ask(ctx, s, text)
	if err != nil {
		return err
	}

	var flowErr error
	for evt := range evts {
		switch evt.Type {
		case finder.EventChat:
			fmt.Fprintf(c.App.Writer, "Taster: %v\n\n", evt.Data)
		case finder.EventError:
			if flowErr == nil {
				flowErr = evt.Err
			}
		}
	}
	if flowErr != nil {
		return flowErr
	}

	snap := s.Snapshot()
	if snap.SearchStatus == finder.SearchNone {
		return nil
	}

	return printResults(c.App.Writer, snap.Restaurants, c.GlobalBool("geojson"))
}

func searchAction(c *cli.Context) error {
	params := models.QueryParams{
		Food:     c.String("food"),
		Location: c.String("location"),
		Price:    c.String("price"),
	}
	if c.Bool("open-now") {
		open := true
		params.OpenNow = &open
	}
	if c.IsSet("radius") {
		radius := c.Int("radius")
		params.Radius = &radius
	}

	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.publisher.Close()

	s := finder.NewSession("cli", rt.greeting)
	snap, err := rt.finder.Search(context.Background(), s, params)
	if err != nil {
		if errors.Is(err, finder.ErrMissingFields) || errors.Is(err, finder.ErrInvalidPrice) {
			return cli.NewExitError(err.Error(), 2)
		}
		return err
	}

	return printResults(c.App.Writer, snap.Restaurants, c.GlobalBool("geojson"))
}

func printResults(w io.Writer, restaurants []models.Restaurant, asGeoJSON bool) error {
	if asGeoJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(geo.FeatureCollection(restaurants))
	}

	if len(restaurants) == 0 {
		_, err := fmt.Fprintln(w, "No restaurants found. Try a different search.")
		return err
	}

	for i, r := range restaurants {
		if _, err := fmt.Fprintf(w, "%d. %s\n", i+1, r.Stringify()); err != nil {
			return err
		}
		if r.URL != "" {
			fmt.Fprintf(w, "   %s\n", r.URL)
		}
	}

	return nil
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "tastefinder"
	app.Usage = "find restaurants from a craving"
	app.Version = version
	app.Flags = globalFlags
	app.Commands = []cli.Command{
		{
			Name:      "ask",
			Usage:     "describe what you want in plain words",
			ArgsUsage: "<text>",
			Action:    ask,
		},
		{
			Name:   "search",
			Usage:  "search by food and location",
			Flags:  searchFlags,
			Action: searchAction,
		},
	}

	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal("Error: ", err)
	}
}
