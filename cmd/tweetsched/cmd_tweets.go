package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tweetsched/internal/analytics"
	"tweetsched/internal/api"
	"tweetsched/internal/app"
	"tweetsched/internal/calendar"
	"tweetsched/internal/composer"
	"tweetsched/internal/model"
	"tweetsched/internal/router"
	"tweetsched/internal/schedule"
	"tweetsched/internal/theme"
	"tweetsched/internal/util"
)

var (
	listStatus string

	createContent    string
	createAt         string
	createStatus     string
	createMedia      []string
	createHashtags   []string
	createNextWindow bool

	calendarDays int
)

var tweetsCmd = &cobra.Command{
	Use:   "tweets",
	Short: "List and manage tweets",
}

var tweetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tweets grouped by status",
	RunE: withApp("tweets_list", router.Tweets, func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		tweets, err := a.Tweets(ctx)
		if err != nil {
			return err
		}
		var only model.Status
		if listStatus != "" {
			if only, err = model.ParseStatus(listStatus); err != nil {
				return err
			}
		}
		printTweets(cmd.OutOrStdout(), palette(a), tweets, only)
		return nil
	}),
}

var tweetsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Compose and submit a tweet",
	RunE: withApp("tweets_create", router.Tweets, func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		c := a.Composer
		w := cmd.OutOrStdout()
		p := palette(a)
		c.SetContent(createContent)
		for _, tag := range createHashtags {
			if !c.AddHashtag(tag) {
				fmt.Fprintln(w, p.Warn.Render("skipped hashtag "+tag))
			}
		}
		switch {
		case createNextWindow:
			at := c.ScheduleNextWindow(a.Config.Schedule.QuietHours)
			fmt.Fprintln(w, p.Muted.Render("next window:"), schedule.FormatLocal(at, time.Local))
		case createAt != "":
			if err := c.SetScheduleInput(createAt); err != nil {
				return err
			}
		}
		if err := c.SetStatus(model.Status(createStatus)); err != nil {
			return err
		}
		if len(createMedia) > 0 {
			if err := uploadMedia(ctx, w, c, createMedia); err != nil {
				return err
			}
		}
		n := c.Count()
		switch c.Level() {
		case composer.LevelOver:
			return fmt.Errorf("%w: %d/%d characters", composer.ErrTooLong, n, composer.MaxCharacters)
		case composer.LevelWarning:
			fmt.Fprintln(w, p.Warn.Render(fmt.Sprintf("%d/%d characters", n, composer.MaxCharacters)))
		}
		tw, err := c.Submit(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "Created", tw.ID, p.Status(tw.Status), schedule.FormatLocal(tw.ScheduledAt, time.Local))
		return nil
	}),
}

func uploadMedia(ctx context.Context, w io.Writer, c *composer.Composer, paths []string) error {
	files := make([]api.File, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		files = append(files, api.File{Name: filepath.Base(path), Body: f})
	}
	refs, err := c.Upload(ctx, files)
	if err != nil {
		return err
	}
	if len(refs) < len(files) {
		fmt.Fprintf(w, "attached %d of %d files (limit %d)\n", len(refs), len(files), composer.MaxMedia)
	}
	return nil
}

var tweetsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a tweet",
	Args:  cobra.ExactArgs(1),
	RunE: withApp("tweets_delete", router.Tweets, func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		if err := a.DeleteTweet(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Deleted", args[0])
		return nil
	}),
}

var tweetsSimulateCmd = &cobra.Command{
	Use:   "simulate <id>",
	Short: "Mark a tweet posted with generated engagement",
	Args:  cobra.ExactArgs(1),
	RunE: withApp("tweets_simulate", router.Tweets, func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		tw, err := a.SimulatePost(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s likes=%d retweets=%d impressions=%d\n",
			tw.ID, palette(a).Status(tw.Status), tw.Likes, tw.Retweets, tw.Impressions)
		return nil
	}),
}

var tweetsRescheduleCmd = &cobra.Command{
	Use:   "reschedule <id> <YYYY-MM-DDTHH:MM>",
	Short: "Move a tweet to a new time",
	Args:  cobra.ExactArgs(2),
	RunE: withApp("tweets_reschedule", router.Scheduler, func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		in, err := a.Calendar.UpdateSchedule(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), in.TweetID, "->", schedule.FormatLocal(in.Start, time.Local), string(in.Phase))
		return nil
	}),
}

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Show scheduled tweets as calendar events",
	RunE: withApp("calendar", router.Scheduler, func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		events, err := a.Calendar.Events(ctx)
		if err != nil && len(events) == 0 {
			return err
		}
		var until time.Time
		if calendarDays > 0 {
			until = time.Now().AddDate(0, 0, calendarDays)
		}
		p := palette(a)
		if err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), p.Warn.Render(api.Message(err, "Showing last known schedule")))
		}
		printEvents(cmd.OutOrStdout(), p, events, until)
		return nil
	}),
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow tweet changes live until interrupted",
	RunE: withAppLong("watch", router.Tweets, func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		w := cmd.OutOrStdout()
		p := palette(a)
		a.StartAnalyticsRefresh(ctx)
		view, tweets, err := a.MountTweets(ctx, func(list []model.Tweet, err error) {
			if err != nil {
				fmt.Fprintln(w, p.Error.Render(api.Message(err, "Failed to refresh tweets")))
				return
			}
			fmt.Fprintln(w, p.Muted.Render(time.Now().Format(time.Kitchen)), "tweets changed")
			printTweets(w, p, list, "")
		})
		if err != nil {
			return err
		}
		defer view.Close()
		printTweets(w, p, tweets, "")
		fmt.Fprintln(w, p.Muted.Render("watching for changes, Ctrl-C to stop"))
		select {
		case <-ctx.Done():
			return nil
		case <-view.Realtime().Done():
			if err := view.Realtime().Err(); err != nil {
				return fmt.Errorf("realtime disconnected: %w", err)
			}
			return nil
		}
	}),
}

func printTweets(w io.Writer, p theme.Palette, tweets []model.Tweet, only model.Status) {
	if len(tweets) == 0 {
		fmt.Fprintln(w, p.Muted.Render("no tweets"))
		return
	}
	groups := analytics.GroupByStatus(tweets)
	for _, s := range model.Statuses {
		if only != "" && s != only {
			continue
		}
		list := groups[s]
		if len(list) == 0 {
			continue
		}
		fmt.Fprintln(w, p.Status(s), p.Muted.Render(fmt.Sprintf("(%d)", len(list))))
		for _, t := range list {
			fmt.Fprintf(w, "  %s  %s  %s\n", p.Muted.Render(t.ID), schedule.FormatLocal(t.ScheduledAt, time.Local), util.Truncate(t.Content, 60))
		}
	}
}

func printEvents(w io.Writer, p theme.Palette, events []calendar.Event, until time.Time) {
	shown := 0
	for _, e := range events {
		if !until.IsZero() && e.Start.After(until) {
			continue
		}
		shown++
		pending := ""
		if e.Phase == calendar.PhasePending {
			pending = p.Warn.Render(" (saving)")
		}
		fmt.Fprintf(w, "%s-%s  %s  %s%s\n",
			e.Start.In(time.Local).Format("Mon Jan 2 15:04"), e.End.In(time.Local).Format("15:04"),
			p.Status(e.Status), e.Title, pending)
	}
	if shown == 0 {
		fmt.Fprintln(w, p.Muted.Render("nothing on the calendar"))
	}
}

func registerTweetCommands() {
	tweetsListCmd.Flags().StringVar(&listStatus, "status", "", "Only show draft, scheduled or posted")

	f := tweetsCreateCmd.Flags()
	f.StringVar(&createContent, "content", "", "Tweet text (required)")
	f.StringVar(&createAt, "at", "", "Publish time as YYYY-MM-DDTHH:MM local time (default now)")
	f.StringVar(&createStatus, "status", string(model.StatusDraft), "draft or scheduled")
	f.StringSliceVar(&createMedia, "media", nil, "Files to attach (up to 4)")
	f.StringSliceVar(&createHashtags, "hashtag", nil, "Hashtags to append")
	f.BoolVar(&createNextWindow, "next-window", false, "Schedule for the next hour outside quiet hours")
	tweetsCreateCmd.MarkFlagRequired("content")
	tweetsCreateCmd.MarkFlagsMutuallyExclusive("at", "next-window")

	calendarCmd.Flags().IntVar(&calendarDays, "days", 0, "Only show the next N days")

	tweetsCmd.AddCommand(tweetsListCmd, tweetsCreateCmd, tweetsDeleteCmd, tweetsSimulateCmd, tweetsRescheduleCmd)
	rootCmd.AddCommand(tweetsCmd, calendarCmd, watchCmd)
}
