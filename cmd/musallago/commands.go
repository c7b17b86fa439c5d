package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"musallago/pkg/config"
	"musallago/pkg/directions"
	"musallago/pkg/geo"
	"musallago/pkg/logging"
	"musallago/pkg/model"
)

// open loads the config and wires the services with console logging.
func (c *cli) open(cmd *cobra.Command) (*App, func(), error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.Console(c.logLevel)
	slog.SetDefault(logger)
	logging.RequestLogger = logger
	return newApp(cmd.Context(), cfg, logger)
}

// emit prints v as JSON with --json, otherwise calls human.
func (c *cli) emit(cmd *cobra.Command, v any, human func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if c.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human(w)
	return nil
}

// parseLatLon parses "lat,lon".
func parseLatLon(s string) (geo.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geo.Point{}, fmt.Errorf("invalid coordinate %q: want lat,lon", s)
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return geo.Point{}, fmt.Errorf("invalid coordinate %q: want lat,lon", s)
	}
	p := geo.Point{Lat: lat, Lon: lon}
	if err := geo.ValidatePoint(p); err != nil {
		return geo.Point{}, err
	}
	return p, nil
}

func describePlace(w io.Writer, p *model.Place) {
	dist := "      ?"
	if d, ok := p.Distance(); ok {
		dist = fmt.Sprintf("%9s", directions.FormatDistance(d))
	}
	fmt.Fprintf(w, "%s  %s (%s", dist, p.Title, p.Type)
	if p.City != "" {
		fmt.Fprintf(w, ", %s", p.City)
	}
	fmt.Fprint(w, ")")
	if am := p.Amenities.List(); len(am) > 0 {
		names := make([]string, len(am))
		for i, a := range am {
			names[i] = string(a)
		}
		fmt.Fprintf(w, " [%s]", strings.Join(names, ", "))
	}
	fmt.Fprintf(w, "  %s\n", p.ID)
}

func (c *cli) newNearbyCmd() *cobra.Command {
	var at string
	var radius float64

	cmd := &cobra.Command{
		Use:   "nearby",
		Short: "List prayer spaces near a coordinate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := parseLatLon(at)
			if err != nil {
				return err
			}
			app, cleanup, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if radius <= 0 {
				radius = float64(app.Cfg.Places.DefaultRadius)
			}
			found := app.Places.GetNearby(cmd.Context(), user, radius)
			cached := app.Places.HasCachedCatalog(cmd.Context())

			out := struct {
				Places        []model.Place `json:"places"`
				RadiusM       float64       `json:"radius_m"`
				CachedCatalog bool          `json:"cached_catalog"`
			}{found, radius, cached}

			return c.emit(cmd, out, func(w io.Writer) {
				if len(found) == 0 {
					if !cached {
						fmt.Fprintln(w, "No places found and no offline data available. Connect once to download the catalog.")
						return
					}
					fmt.Fprintf(w, "No places within %s of %s.\n", directions.FormatDistance(radius), user)
					return
				}
				fmt.Fprintf(w, "%d places within %s of %s\n", len(found), directions.FormatDistance(radius), user)
				for i := range found {
					describePlace(w, &found[i])
				}
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "User coordinate as lat,lon")
	cmd.Flags().Float64Var(&radius, "radius", 0, "Search radius in metres (default from config)")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func (c *cli) newPlaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "place <id>",
		Short: "Show a single prayer space",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := uuid.Parse(args[0]); err != nil {
				return fmt.Errorf("invalid place id %q", args[0])
			}
			app, cleanup, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			p, ok := app.Places.GetPlaceByID(cmd.Context(), args[0])
			if !ok {
				return errors.New("place not found")
			}
			return c.emit(cmd, p, func(w io.Writer) { describePlace(w, p) })
		},
	}
}

func (c *cli) newRouteCmd() *cobra.Command {
	var from, to, name string
	var asGeoJSON bool

	cmd := &cobra.Command{
		Use:   "route",
		Short: "Resolve a walking route, falling back to a straight line offline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			origin, err := parseLatLon(from)
			if err != nil {
				return err
			}
			dest, err := parseLatLon(to)
			if err != nil {
				return err
			}
			app, cleanup, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			res := app.Directions.Route(cmd.Context(), origin, dest)
			if asGeoJSON {
				fc := geo.RouteFeatureCollection(res.Points, map[string]interface{}{"source": string(res.Source)})
				data, err := fc.MarshalJSON()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}

			steps := directions.OfflineInstructions(origin, dest, name)
			out := struct {
				directions.Result
				Instructions []string `json:"instructions"`
			}{res, steps}

			return c.emit(cmd, out, func(w io.Writer) {
				fmt.Fprintf(w, "Route %s -> %s: %s, %d points (%s)\n",
					origin, dest, directions.FormatDistance(res.DistanceM), len(res.Points), res.Source)
				if res.Source == directions.SourceSynthetic {
					for _, s := range steps {
						fmt.Fprintf(w, "  %s\n", s)
					}
				}
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Origin as lat,lon")
	cmd.Flags().StringVar(&to, "to", "", "Destination as lat,lon")
	cmd.Flags().StringVar(&name, "name", "", "Destination name used in offline instructions")
	cmd.Flags().BoolVar(&asGeoJSON, "geojson", false, "Print the route as a GeoJSON FeatureCollection")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (c *cli) newPrefetchCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "prefetch",
		Short: "Download the place catalog for offline use around a coordinate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := parseLatLon(at)
			if err != nil {
				return err
			}
			app, cleanup, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			res := app.Places.InitializeProactiveCache(cmd.Context(), user)
			return c.emit(cmd, res, func(w io.Writer) {
				if !res.Cached {
					fmt.Fprintf(w, "Prefetch failed after %d attempts; offline data unchanged.\n", res.Attempts)
					return
				}
				fmt.Fprintf(w, "Cached catalog: %d places within %s (%d attempts, %d failed)\n",
					res.InRadius, directions.FormatDistance(res.RadiusM), res.Attempts, res.Failures)
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "User coordinate as lat,lon")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func (c *cli) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show offline cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			keys, err := app.Cache.ListKeys(cmd.Context())
			if err != nil {
				return err
			}
			stats := app.Places.CacheStats(cmd.Context())
			out := struct {
				model.CacheStats
				Entries       int    `json:"entries"`
				SchemaVersion uint32 `json:"schemaVersion"`
			}{stats, len(keys), app.Cache.SchemaVersion()}

			return c.emit(cmd, out, func(w io.Writer) {
				fmt.Fprintf(w, "Places cached:   %d\n", stats.PlacesCount)
				if stats.LastUpdate != nil {
					fmt.Fprintf(w, "Last update:     %s (%s ago)\n",
						stats.LastUpdate.Local().Format(time.DateTime), time.Since(*stats.LastUpdate).Round(time.Minute))
				} else {
					fmt.Fprintln(w, "Last update:     never")
				}
				fmt.Fprintf(w, "Cache entries:   %d\n", len(keys))
				fmt.Fprintf(w, "Cache size:      %.1f KiB\n", float64(stats.CacheSizeBytes)/1024)
				fmt.Fprintf(w, "Schema version:  %d\n", app.Cache.SchemaVersion())
			})
		},
	}
}

func (c *cli) newOfflineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "offline",
		Short: "Probe network connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			app.Connectivity.IsOffline(cmd.Context())
			st := app.Connectivity.Last()
			return c.emit(cmd, st, func(w io.Writer) {
				if st.Offline {
					fmt.Fprintln(w, "offline")
				} else {
					fmt.Fprintln(w, "online")
				}
			})
		},
	}
}

func (c *cli) newClearCmd() *cobra.Command {
	var placesOnly, routesOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete cached data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if placesOnly && routesOnly {
				return errors.New("--places-only and --routes-only are mutually exclusive")
			}
			app, cleanup, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			what := "all cached data"
			switch {
			case placesOnly:
				what = "cached places"
				err = app.Places.ClearPlaces(ctx)
			case routesOnly:
				what = "cached routes"
				err = app.Directions.ClearRoutes(ctx)
			default:
				err = app.Cache.ClearAll(ctx)
			}
			if err != nil {
				return fmt.Errorf("failed to clear %s: %w", what, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s.\n", what)
			return nil
		},
	}
	cmd.Flags().BoolVar(&placesOnly, "places-only", false, "Only clear the place catalog and details")
	cmd.Flags().BoolVar(&routesOnly, "routes-only", false, "Only clear cached routes")
	return cmd
}

func (c *cli) newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Generate the default config file and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.GenerateDefault(c.configPath); err != nil {
				return fmt.Errorf("failed to generate config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config file generated: %s\n", c.configPath)
			return nil
		},
	}
}
