package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jhalttu/talkscan/report"
	"github.com/jhalttu/talkscan/types"
	"github.com/jhalttu/talkscan/ui"
	"github.com/jhalttu/talkscan/video"
)

type ProbeCmd struct {
	Video string `arg:"" name:"video" help:"Video file or http(s) URL to inspect"`
	Check bool   `help:"Also run an integrity check over the full stream"`
}

func (cmd *ProbeCmd) Run(appCtx *types.AppContext) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	videoPath := cmd.Video
	if video.IsURL(cmd.Video) {
		fmt.Fprintln(os.Stderr, ui.InfoStyle.Render(fmt.Sprintf("⬇️  Downloading %s", cmd.Video)))
		tmp, err := video.Download(ctx, cmd.Video)
		if err != nil {
			return fmt.Errorf("%w: %v", report.ErrInput, err)
		}
		defer os.Remove(tmp)
		videoPath = tmp
	} else if !video.IsVideoFile(cmd.Video) {
		return fmt.Errorf("%w: %s is not a video file", report.ErrInput, cmd.Video)
	}

	meta, err := video.Probe(ctx, videoPath)
	if err != nil {
		return fmt.Errorf("%w: %v", report.ErrInput, err)
	}

	fmt.Println(ui.HeaderStyle.Render(fmt.Sprintf("📹 %s", cmd.Video)))
	fmt.Printf("  Codec:      %s\n", meta.Codec)
	fmt.Printf("  Resolution: %dx%d\n", meta.Width, meta.Height)
	fmt.Printf("  Duration:   %.2fs\n", meta.Duration)
	fmt.Printf("  Frame rate: %.3f fps (average)\n", meta.AvgFPS)
	fmt.Printf("  Frames:     %d\n", meta.TotalFrames)

	if cmd.Check {
		appCtx.Log.WithField("video", cmd.Video).Debug("running integrity check")
		if err := video.ValidateIntegrity(ctx, videoPath); err != nil {
			fmt.Println(ui.ErrorStyle.Render(fmt.Sprintf("❌ %v", err)))
			return fmt.Errorf("%w: %v", report.ErrInput, err)
		}
		fmt.Println(ui.SuccessStyle.Render("✅ No corruption detected"))
	}
	return nil
}
