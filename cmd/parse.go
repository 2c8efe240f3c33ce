package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/admissions-ingest/internal/model"
	"github.com/sells-group/admissions-ingest/internal/postparse"
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse posts from a file and print the structured result",
	Long:  "Dry run of the post parser. The file may hold one archive post as JSON, a JSON array of posts, an archive page ({\"data\": [...]}) or a plain post body. Use - for stdin. Nothing is written.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		posts, err := decodePosts(data, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(parsePosts(posts))
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

// parseResult pairs a post id with its parse, which is nil for posts with no
// recognizable decisions.
type parseResult struct {
	PostID string            `json:"post_id"`
	Parsed *model.ParsedPost `json:"parsed"`
}

func parsePosts(posts []model.RawPost) []parseResult {
	out := make([]parseResult, 0, len(posts))
	for _, p := range posts {
		out = append(out, parseResult{PostID: p.ID, Parsed: postparse.Parse(p)})
	}
	return out
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return data, eris.Wrap(err, "read stdin")
	}
	data, err := os.ReadFile(path)
	return data, eris.Wrapf(err, "read %s", path)
}

// decodePosts accepts a single post, an array of posts, an archive page, or
// a bare body. A bare body gets the file name as id and the current time.
func decodePosts(data []byte, name string) ([]model.RawPost, error) {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return nil, eris.New("parse: input is empty")
	case trimmed[0] == '[':
		var posts []model.RawPost
		if err := json.Unmarshal(trimmed, &posts); err != nil {
			return nil, eris.Wrap(err, "parse: decode post array")
		}
		return posts, nil
	case trimmed[0] == '{':
		var page struct {
			Data []model.RawPost `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &page); err == nil && page.Data != nil {
			return page.Data, nil
		}
		var post model.RawPost
		if err := json.Unmarshal(trimmed, &post); err != nil {
			return nil, eris.Wrap(err, "parse: decode post")
		}
		return []model.RawPost{post}, nil
	}

	id := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return []model.RawPost{{
		ID:        id,
		Body:      string(data),
		CreatedAt: model.EpochSeconds(time.Now().Unix()),
	}}, nil
}
