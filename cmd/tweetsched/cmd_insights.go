package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tweetsched/internal/analytics"
	"tweetsched/internal/api"
	"tweetsched/internal/app"
	"tweetsched/internal/router"
	"tweetsched/internal/suggest"
	"tweetsched/internal/theme"
)

var (
	suggestTrending bool
	timesCount      int
	timesZone       string
	settingsZone    string
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show the analytics dashboard",
	RunE: withApp("analytics", router.Dashboard, func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		snap, err := a.Analytics(ctx)
		if err != nil {
			return err
		}
		tweets, err := a.Tweets(ctx)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		p := palette(a)

		for _, c := range analytics.Cards(snap) {
			fmt.Fprintf(w, "%-13s %d\n", p.Muted.Render(c.Title), c.Value)
		}

		fmt.Fprintln(w, "\n"+p.Title.Render("Performance Distribution"))
		dist := analytics.Distribution(snap)
		if len(dist) == 0 {
			fmt.Fprintln(w, p.Muted.Render("  no posted tweets yet"))
		}
		for _, s := range dist {
			fmt.Fprintf(w, "  %s %d tweets (%.1f%%)\n", p.Bucket(s.Bucket), s.Count, s.Share)
		}

		fmt.Fprintln(w, "\n"+p.Title.Render("Top Performing Tweets"))
		for _, b := range analytics.TopScored(snap, analytics.TopN) {
			fmt.Fprintf(w, "  %-9s %8.0f  %s\n", b.Label, b.Score, p.Bucket(b.Bucket))
		}

		fmt.Fprintln(w, "\n"+p.Title.Render("Engagement Trends (Last 7 Posts)"))
		for _, pt := range analytics.Trends(tweets) {
			fmt.Fprintf(w, "  %-6s impressions=%d engagement=%d\n", pt.Label, pt.Impressions, pt.Engagement)
		}

		in := analytics.Insights(tweets)
		fmt.Fprintln(w, "\n"+p.Title.Render("Content Insights"))
		fmt.Fprintf(w, "  engagement rate %.2f%% %s\n", in.Rate, bar(in.RateBar(), 20))
		fmt.Fprintf(w, "  impressions %d  likes %d  retweets %d  avg engagement %d\n",
			in.Impressions, in.Likes, in.Retweets, in.AvgEngagement)
		return nil
	}),
}

// bar draws a fixed width progress bar for pct in [0, 100].
func bar(pct float64, width int) string {
	filled := int(pct / 100 * float64(width))
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

var suggestCmd = &cobra.Command{
	Use:   "suggest [topic]",
	Short: "Ask the backend for tweet ideas on a topic",
	Args:  cobra.MaximumNArgs(1),
	RunE: withApp("suggest", router.Tweets, func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		w := cmd.OutOrStdout()
		if suggestTrending || len(args) == 0 {
			for _, t := range suggest.TrendingTopics() {
				fmt.Fprintln(w, t)
			}
			return nil
		}
		ideas, err := a.Composer.Suggestions(ctx, args[0])
		if err != nil {
			return err
		}
		for i, s := range ideas {
			fmt.Fprintf(w, "%d. %s\n", i+1, s)
		}
		return nil
	}),
}

var hashtagsCmd = &cobra.Command{
	Use:   "hashtags <content>",
	Short: "Suggest hashtags for some text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tags := suggest.HashtagCandidates(strings.Join(args, " "))
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(tags, " "))
		return nil
	},
}

var timesCmd = &cobra.Command{
	Use:   "times",
	Short: "Show recommended posting times",
	RunE: withApp("times", router.Scheduler, func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		zone := timesZone
		if zone == "" {
			if sess, ok := a.Auth.Session(); ok {
				zone = sess.User.TimeZone
			}
		}
		times, err := a.API.RecommendTimes(ctx, api.RecommendTimesRequest{Count: timesCount, TimeZone: zone})
		if err != nil {
			return err
		}
		loc := time.Local
		if zone != "" {
			if l, err := time.LoadLocation(zone); err == nil {
				loc = l
			}
		}
		w := cmd.OutOrStdout()
		for _, raw := range times {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				fmt.Fprintln(w, raw)
				continue
			}
			fmt.Fprintln(w, t.In(loc).Format("Mon Jan 2 15:04 MST"))
		}
		return nil
	}),
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Update account preferences",
	RunE: withApp("settings", router.Settings, func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		if err := a.UpdateTimeZone(ctx, settingsZone); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Time zone set to", settingsZone)
		return nil
	}),
}

var themeCmd = &cobra.Command{
	Use:   "theme",
	Short: "Show or change the color mode",
}

var themeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current color mode",
	RunE: withApp("theme_show", "", func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		m := a.UI.Mode()
		fmt.Fprint(cmd.OutOrStdout(), theme.Banner(m))
		fmt.Fprintln(cmd.OutOrStdout(), "mode:", m)
		return nil
	}),
}

var themeToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Switch between light and dark",
	RunE: withApp("theme_toggle", "", func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		m, err := a.UI.Toggle(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "mode:", m)
		return nil
	}),
}

func registerInsightCommands() {
	suggestCmd.Flags().BoolVar(&suggestTrending, "trending", false, "List trending topics instead")
	timesCmd.Flags().IntVar(&timesCount, "count", 0, "How many times to return (1-24)")
	timesCmd.Flags().StringVar(&timesZone, "tz", "", "IANA time zone (default: account setting)")
	settingsCmd.Flags().StringVar(&settingsZone, "timezone", "", "IANA time zone, e.g. Europe/Berlin (required)")
	settingsCmd.MarkFlagRequired("timezone")

	themeCmd.AddCommand(themeShowCmd, themeToggleCmd)
	rootCmd.AddCommand(analyticsCmd, suggestCmd, hashtagsCmd, timesCmd, settingsCmd, themeCmd)
}
