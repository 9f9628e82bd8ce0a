package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"

	"vidgrab/internal/consts"
	"vidgrab/internal/engine"
	"vidgrab/internal/entity"
	"vidgrab/pkg/calc"
)

// formatChoice is the outcome of the format prompt: the selector handed to
// the engine plus any post-processing it implies.
type formatChoice struct {
	Selector       string
	PostProcessors []entity.PostProcessor
}

// formatRow is one selectable line of the format table. Codec is set only on
// the synthetic conversion rows and names the audio codec to convert to.
type formatRow struct {
	ID     string
	Ext    string
	Res    string
	VCodec string
	ACodec string
	ABR    int
	FPS    int
	Size   string
	Note   string
	Codec  string
}

// conversionRows are the synthetic audio-extraction choices appended after
// the real formats. Picking one downloads the best audio and converts it.
func conversionRows() []formatRow {
	return []formatRow{
		{ID: "conv-mp3", Ext: "mp3", ACodec: "mp3", ABR: 192, Note: "extract & convert", Codec: "mp3"},
		{ID: "conv-m4a", Ext: "m4a", ACodec: "aac", ABR: 192, Note: "extract & convert", Codec: "m4a"},
		{ID: "conv-opus", Ext: "opus", ACodec: "opus", ABR: 192, Note: "extract & convert", Codec: "opus"},
	}
}

// formatRows flattens the engine formats into table rows: video formats
// first, then audio-only ones, then the conversion rows.
func formatRows(info *engine.Info) []formatRow {
	var video, audio []formatRow

	for _, f := range info.Formats {
		row := formatRow{
			ID:     f.ID,
			Ext:    f.Ext,
			Res:    f.Resolution,
			VCodec: f.VCodec,
			ACodec: f.ACodec,
			ABR:    f.ABR,
			FPS:    f.FPS,
			Size:   sizeColumn(f.FileSize),
			Note:   f.Note,
		}

		switch {
		case hasCodec(f.VCodec):
			video = append(video, row)
		case hasCodec(f.ACodec):
			audio = append(audio, row)
		}
	}

	return append(append(video, audio...), conversionRows()...)
}

func hasCodec(codec string) bool {
	return codec != "" && codec != "none"
}

func sizeColumn(size *int64) string {
	if size == nil || *size <= 0 {
		return "?"
	}

	return calc.HumanBytes(*size)
}

// choiceForRow maps a selected table row onto a selector and its
// post-processors. Video rows always merge with the best audio.
func choiceForRow(row formatRow) formatChoice {
	if row.Codec != "" {
		return formatChoice{
			Selector: consts.SelectorBestAudio,
			PostProcessors: []entity.PostProcessor{{
				Kind:    consts.PostProcessorExtractAudio,
				Codec:   row.Codec,
				Quality: consts.DefaultAudioQuality,
			}},
		}
	}

	if hasCodec(row.VCodec) {
		return formatChoice{Selector: row.ID + "+bestaudio/best"}
	}

	return formatChoice{Selector: row.ID}
}

// customSelector appends the best-audio merge when the user typed a bare
// format id rather than a full selector expression.
func customSelector(code string) string {
	if strings.ContainsAny(code, "+/") {
		return code
	}

	return code + "+bestaudio/best"
}

// chooseFormat lists the formats of one representative URL and asks for a
// selection that then applies to every item in the batch. When the listing
// fails the run falls back to the best available quality instead of dying.
// ok=false reports that the user backed out of the run.
func (a *App) chooseFormat(ctx context.Context, sampleURL string) (formatChoice, bool, error) {
	headline.Fprintln(a.out, "\nFetching available formats...")

	info, err := a.deps.Engine.Metadata(ctx, sampleURL, engine.MetadataOptions{
		CookieFile: a.deps.Resolver.CookieFile(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return formatChoice{}, false, err
		}

		a.log.Warn("format listing failed, using best",
			slog.String("url", sampleURL), slog.Any("error", err))
		warnText.Fprintf(a.out, "Could not list formats (%v), using best available.\n", err)

		return formatChoice{Selector: consts.SelectorBest}, true, nil
	}

	rows := formatRows(info)
	a.printFormats(rows)

	for {
		fmt.Fprintln(a.out, "B=best  <index>=pick a row  C=custom selector  BACK=cancel")

		choice, err := a.in.Line("> ")
		if err != nil {
			return formatChoice{}, false, err
		}

		switch lower := strings.ToLower(choice); {
		case lower == "b" || lower == "":
			return formatChoice{Selector: consts.SelectorBest}, true, nil
		case lower == "back":
			return formatChoice{}, false, nil
		case lower == "c":
			custom, err := a.in.Line("Format selector (empty cancels): ")
			if err != nil {
				return formatChoice{}, false, err
			}

			if custom == "" {
				continue
			}

			return formatChoice{Selector: customSelector(custom)}, true, nil
		default:
			idx, convErr := strconv.Atoi(choice)
			if convErr != nil || idx < 1 || idx > len(rows) {
				warnText.Fprintln(a.out, "Index out of range.")

				continue
			}

			return choiceForRow(rows[idx-1]), true, nil
		}
	}
}

func (a *App) printFormats(rows []formatRow) {
	tw := tabwriter.NewWriter(a.out, 2, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "  idx\tid\text\tres/note\tvcodec\tacodec\tabr\tfps\tsize")

	for i, row := range rows {
		note := row.Res
		if note == "" {
			note = row.Note
		}

		fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1, row.ID, row.Ext, note,
			orDash(row.VCodec), orDash(row.ACodec),
			orDashInt(row.ABR), orDashInt(row.FPS), row.Size)
	}

	tw.Flush()
}

func orDash(s string) string {
	if !hasCodec(s) {
		return "-"
	}

	return s
}

func orDashInt(n int) string {
	if n <= 0 {
		return "-"
	}

	return strconv.Itoa(n)
}

// askSubtitles prompts for subtitle download. ok=false backs out of the run.
func (a *App) askSubtitles() (*entity.SubtitleOptions, bool, error) {
	choice, err := a.in.Line("Download subtitles? (y/N/B=back): ")
	if err != nil {
		return nil, false, err
	}

	switch strings.ToLower(choice) {
	case "b":
		return nil, false, nil
	case "y":
	default:
		return nil, true, nil
	}

	langLine, err := a.in.Line(fmt.Sprintf(
		"Subtitle language code(s), comma separated [%s]: ", consts.DefaultSubtitleLang))
	if err != nil {
		return nil, false, err
	}

	return &entity.SubtitleOptions{
		Languages:     splitLangs(langLine),
		Format:        consts.DefaultSubtitleFormat,
		AutoGenerated: true,
	}, true, nil
}

// splitLangs parses a comma-separated language list, defaulting to English.
func splitLangs(line string) []string {
	var langs []string

	for lang := range strings.SplitSeq(line, ",") {
		lang = strings.TrimSpace(lang)
		if lang != "" {
			langs = append(langs, lang)
		}
	}

	if len(langs) == 0 {
		return []string{consts.DefaultSubtitleLang}
	}

	return langs
}

// askThumbnail prompts for thumbnail handling: Y embeds the thumbnail, H
// embeds the highest quality one, anything else skips.
func (a *App) askThumbnail() (*entity.ThumbnailOptions, error) {
	choice, err := a.in.Line("Download thumbnails? (Y=normal / H=high quality / N=no): ")
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(choice) {
	case "y":
		return &entity.ThumbnailOptions{Embed: true}, nil
	case "h":
		return &entity.ThumbnailOptions{Embed: true, HighQuality: true}, nil
	default:
		return nil, nil
	}
}

// chooseRunOptions walks the per-batch prompts and assembles the normalized
// options every worker shares. ok=false reports that the user backed out.
func (a *App) chooseRunOptions(ctx context.Context, sampleURL, target string) (entity.RunOptions, bool, error) {
	format, ok, err := a.chooseFormat(ctx, sampleURL)
	if err != nil || !ok {
		return entity.RunOptions{}, ok, err
	}

	subs, ok, err := a.askSubtitles()
	if err != nil || !ok {
		return entity.RunOptions{}, ok, err
	}

	thumb, err := a.askThumbnail()
	if err != nil {
		return entity.RunOptions{}, false, err
	}

	runCfg := a.deps.RunConfig.Current()

	opts := entity.RunOptions{
		OutputDir:      target,
		FormatSelector: format.Selector,
		PostProcessors: format.PostProcessors,
		Subtitles:      subs,
		Thumbnail:      thumb,
		RetryLimit:     runCfg.RetryLimit,
		MaxParallel:    runCfg.MaxParallel,
	}
	opts.Normalize()

	return opts, true, nil
}
