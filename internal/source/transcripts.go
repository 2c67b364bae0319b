package source

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lendsight/engage-cli/internal/model"
)

// transcriptFile is the on-disk shape of one exported conversation.
type transcriptFile struct {
	LeadID   string          `json:"lead_id,omitempty"`
	Phone    string          `json:"phone,omitempty"`
	Email    string          `json:"email,omitempty"`
	Messages []model.Message `json:"messages"`
}

// TranscriptIndex joins exported conversations to leads by lead ID,
// normalized phone, or normalized email, in that precedence order.
type TranscriptIndex struct {
	byLeadID map[string]model.Transcript
	byPhone  map[string]model.Transcript
	byEmail  map[string]model.Transcript
	files    int
}

// LoadTranscripts reads every *.json file in dir. A file that fails to
// parse is logged and skipped; an absent conversation is a normal
// classification outcome, never an error.
func LoadTranscripts(dir string) (*TranscriptIndex, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrap(err, "source: read transcripts dir")
	}

	idx := &TranscriptIndex{
		byLeadID: make(map[string]model.Transcript),
		byPhone:  make(map[string]model.Transcript),
		byEmail:  make(map[string]model.Transcript),
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			zap.L().Warn("skipping unreadable transcript", zap.String("file", path), zap.Error(err))
			continue
		}

		var tf transcriptFile
		if err := json.Unmarshal(data, &tf); err != nil {
			zap.L().Warn("skipping malformed transcript", zap.String("file", path), zap.Error(err))
			continue
		}

		transcript := model.Transcript(tf.Messages).Sorted()
		idx.files++
		if tf.LeadID != "" {
			idx.byLeadID[tf.LeadID] = transcript
		}
		if phone := model.NormalizePhone(tf.Phone); phone != "" {
			idx.byPhone[phone] = transcript
		}
		if email := model.NormalizeEmail(tf.Email); email != "" {
			idx.byEmail[email] = transcript
		}
	}

	return idx, nil
}

// Find returns the transcript for a lead, or an empty transcript when
// no conversation exists.
func (idx *TranscriptIndex) Find(lead model.Lead) model.Transcript {
	if t, ok := idx.byLeadID[lead.ID]; ok {
		return t
	}
	if t, ok := idx.byPhone[model.NormalizePhone(lead.Phone)]; ok && lead.Phone != "" {
		return t
	}
	if t, ok := idx.byEmail[model.NormalizeEmail(lead.Email)]; ok && lead.Email != "" {
		return t
	}
	return nil
}

// Size returns how many transcript files were indexed.
func (idx *TranscriptIndex) Size() int {
	return idx.files
}
