package command

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"mpdcore/internal/entity"
	"mpdcore/internal/parser/bounds"
	"mpdcore/internal/util"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5fafff"))

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <url|file>",
		Short: "解析MPD并输出周期, 轨道与分片信息",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opt, err := optionFromFlags(cmd, args)
			if err != nil {
				return err
			}
			return runInspect(cmd, opt)
		},
	}
	flags := cmd.Flags()
	flags.String("segments", "", "列出该时间窗口内的分片, 格式 from,duration (秒)")
	flags.BoolP("interactive", "i", false, "交互式选择要列出分片的流")
	flags.Bool("json", false, "以JSON格式输出")
	flags.StringSliceP("representation", "r", nil, "要列出分片的Representation ID")
	return cmd
}

// segmentListing is the segments of one representation inside a window
type segmentListing struct {
	PeriodID         string            `json:"periodId"`
	AdaptationID     string            `json:"adaptationId"`
	RepresentationID string            `json:"representationId"`
	Initialized      bool              `json:"initialized"`
	Init             *entity.Segment   `json:"init,omitempty"`
	Segments         []*entity.Segment `json:"segments"`
}

// inspectReport JSON输出结构
type inspectReport struct {
	Manifest *entity.Manifest `json:"manifest"`
	Warnings []string         `json:"warnings,omitempty"`
	Listings []segmentListing `json:"listings,omitempty"`
}

func runInspect(cmd *cobra.Command, opt *MyOption) error {
	result, err := newExtractor(opt, nil).ExtractManifest(cmd.Context(), opt.Input)
	if err != nil {
		return err
	}
	m := result.Manifest
	warnings := make([]string, 0, len(result.Warnings))
	for _, w := range result.Warnings {
		util.Logger.Warn("%s", w.Error())
		warnings = append(warnings, w.Error())
	}

	choices, err := chooseRepresentations(cmd, opt, m)
	if err != nil {
		return err
	}
	var listings []segmentListing
	if len(choices) > 0 {
		window := opt.Segments
		if window == nil {
			window = manifestWindow(m, bounds.MonotonicNow())
		}
		listings = listSegments(m, choices, window)
	}

	out := cmd.OutOrStdout()
	if opt.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(inspectReport{Manifest: m, Warnings: warnings, Listings: listings})
	}
	printManifest(out, m)
	printListings(out, listings)
	return nil
}

// chooseRepresentations picks the representations whose segments are listed
func chooseRepresentations(cmd *cobra.Command, opt *MyOption, m *entity.Manifest) ([]util.RepresentationChoice, error) {
	if opt.Interactive {
		return util.SelectRepresentations(m, cmd.InOrStdin(), cmd.OutOrStdout())
	}
	if len(opt.RepresentationIDs) > 0 {
		choices := make([]util.RepresentationChoice, 0, len(opt.RepresentationIDs))
		for _, id := range opt.RepresentationIDs {
			period, adaptation, rep := m.FindRepresentation(id)
			if rep == nil {
				return nil, fmt.Errorf("未找到Representation: %s", id)
			}
			choices = append(choices, util.RepresentationChoice{PeriodID: period.ID, Adaptation: adaptation, Representation: rep})
		}
		return choices, nil
	}
	if opt.Segments == nil {
		return nil, nil
	}
	var choices []util.RepresentationChoice
	for _, period := range m.Periods {
		for _, adaptation := range period.GetAdaptations() {
			for _, rep := range adaptation.Representations {
				choices = append(choices, util.RepresentationChoice{PeriodID: period.ID, Adaptation: adaptation, Representation: rep})
			}
		}
	}
	return choices, nil
}

// manifestWindow covers the whole reachable content at monotonic time nowMs
func manifestWindow(m *entity.Manifest, nowMs float64) *SegmentWindow {
	from := m.MinimumSafePosition()
	to := m.MaximumSafePosition(nowMs)
	return &SegmentWindow{From: from, Duration: math.Max(to-from, 0)}
}

func listSegments(m *entity.Manifest, choices []util.RepresentationChoice, window *SegmentWindow) []segmentListing {
	listings := make([]segmentListing, 0, len(choices))
	for _, c := range choices {
		listing := segmentListing{
			PeriodID:         c.PeriodID,
			AdaptationID:     c.Adaptation.ID,
			RepresentationID: c.Representation.ID,
			Segments:         []*entity.Segment{},
		}
		idx := c.Representation.Index
		if idx == nil {
			listings = append(listings, listing)
			continue
		}
		listing.Initialized = idx.IsInitialized()
		listing.Init = idx.InitSegment()

		from, to := window.From, window.From+window.Duration
		if period := m.GetPeriod(c.PeriodID); period != nil {
			from = math.Max(from, period.Start)
			if period.End != nil {
				to = math.Min(to, *period.End)
			}
		}
		if to > from {
			listing.Segments = append(listing.Segments, idx.Segments(from, to-from)...)
		}
		listings = append(listings, listing)
	}
	return listings
}

func printManifest(w io.Writer, m *entity.Manifest) {
	kind := "static"
	if m.IsDynamic {
		kind = "dynamic"
	}
	fmt.Fprintf(w, "%s\n", headerStyle.Render(fmt.Sprintf("MPD (%s), %d period(s)", kind, len(m.Periods))))
	if len(m.URIs) > 0 {
		fmt.Fprintf(w, "URL: %s\n", m.URIs[0])
	}
	fmt.Fprintf(w, "Time bounds: %.3f - %.3f\n", m.MinimumSafePosition(), m.TimeBounds.MaximumTimeData.MaximumSafePosition)
	if m.Lifetime != nil {
		fmt.Fprintf(w, "Lifetime: %gs\n", *m.Lifetime)
	}

	for _, period := range m.Periods {
		end := "?"
		if period.End != nil {
			end = fmt.Sprintf("%.3f", *period.End)
		}
		fmt.Fprintf(w, "%s\n", headerStyle.Render(fmt.Sprintf("=== Period %s [%.3f - %s] ===", period.ID, period.Start, end)))
		for _, adaptation := range period.GetAdaptations() {
			fmt.Fprintf(w, "  %s", adaptation.String())
			if adaptation.Language != "" {
				fmt.Fprintf(w, " lang=%s", adaptation.Language)
			}
			fmt.Fprintln(w)
			for _, rep := range adaptation.Representations {
				fmt.Fprintf(w, "    %s\n", rep.ToShortString(adaptation.Type))
			}
			for _, trick := range adaptation.TrickModeTracks {
				fmt.Fprintf(w, "    trick mode: %s\n", trick.String())
			}
		}
		for _, event := range period.StreamEvents {
			fmt.Fprintf(w, "  event %s @%.3f %s\n", event.ID, event.Start, event.SchemeIDURI)
		}
	}
}

func printListings(w io.Writer, listings []segmentListing) {
	for _, l := range listings {
		fmt.Fprintf(w, "%s\n", headerStyle.Render(fmt.Sprintf("--- %s / %s / %s ---", l.PeriodID, l.AdaptationID, l.RepresentationID)))
		if !l.Initialized {
			fmt.Fprintln(w, "  (index not initialized)")
		}
		if l.Init != nil {
			fmt.Fprintf(w, "  %s\n", l.Init.String())
		}
		for _, seg := range l.Segments {
			fmt.Fprintf(w, "  %s\n", seg.String())
		}
	}
}
