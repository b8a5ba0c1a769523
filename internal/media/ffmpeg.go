package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/MimeLyc/bilingual-subs/pkg/log"
	"github.com/dustin/go-humanize"
)

// OutputSuffix is appended to the media stem for burned-in output.
const OutputSuffix = "_finish"

// Muxer burns a caption file into a video.
type Muxer interface {
	Burn(ctx context.Context, subtitlePath, mediaPath string) (string, error)
}

// FFmpeg burns subtitles with the ffmpeg "subtitles" video filter.
type FFmpeg struct {
	ffmpegCmd string
}

func NewFfmpeg(ffmpegCmd string) *FFmpeg {
	if ffmpegCmd == "" {
		ffmpegCmd = "ffmpeg"
	}
	return &FFmpeg{ffmpegCmd: ffmpegCmd}
}

// OutputPath returns "<dir>/<stem>_finish<ext>" for mediaPath.
func OutputPath(mediaPath string) string {
	ext := filepath.Ext(mediaPath)
	return strings.TrimSuffix(mediaPath, ext) + OutputSuffix + ext
}

// Burn renders subtitlePath into mediaPath, writes OutputPath(mediaPath)
// and removes mediaPath once ffmpeg succeeded.
func (ff *FFmpeg) Burn(ctx context.Context, subtitlePath, mediaPath string) (string, error) {
	cmdPath, err := exec.LookPath(ff.ffmpegCmd)
	if err != nil {
		return "", fmt.Errorf("find %s: %w", ff.ffmpegCmd, err)
	}

	output := OutputPath(mediaPath)
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, cmdPath, ff.burnArgs(subtitlePath, mediaPath, output)...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg %s: %w: %s", filepath.Base(mediaPath), err, lastLine(stderr.String()))
	}

	info, err := os.Stat(output)
	if err != nil {
		return "", fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	log.Info("Burned %s into %s (%s)", filepath.Base(subtitlePath), filepath.Base(output), humanize.Bytes(uint64(info.Size())))

	if err := os.Remove(mediaPath); err != nil {
		return output, fmt.Errorf("remove original media: %w", err)
	}
	return output, nil
}

func (ff *FFmpeg) burnArgs(subtitlePath, mediaPath, output string) []string {
	return []string{
		"-i", mediaPath,
		"-vf", "subtitles=" + escapeFilterValue(subtitlePath),
		output,
		"-y",
	}
}

var (
	optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	graphEscaper  = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`)
)

// escapeFilterValue escapes a filter option value for both the option
// parser and the filtergraph parser.
func escapeFilterValue(s string) string {
	return graphEscaper.Replace(optionEscaper.Replace(s))
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
