package enrichment

import (
	"context"
	"encoding/binary"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/dialogue-forge/internal/db"
	"github.com/jonathan/dialogue-forge/internal/types"
)

// Valence lexicon for primary emotions. Anything outside both sets, or
// empty, classifies as mixed.
var positiveEmotions = map[string]struct{}{
	"joy": {}, "happiness": {}, "gratitude": {}, "hope": {}, "relief": {},
	"excitement": {}, "contentment": {}, "pride": {}, "love": {}, "calm": {},
	"curiosity": {}, "trust": {},
}

var negativeEmotions = map[string]struct{}{
	"sadness": {}, "anger": {}, "fear": {}, "anxiety": {}, "grief": {},
	"shame": {}, "guilt": {}, "frustration": {}, "loneliness": {}, "despair": {},
	"worry": {}, "disgust": {},
}

func classifyValence(emotion string) string {
	e := strings.ToLower(strings.TrimSpace(emotion))
	if _, ok := positiveEmotions[e]; ok {
		return "positive"
	}
	if _, ok := negativeEmotions[e]; ok {
		return "negative"
	}
	return "mixed"
}

// scaffoldingKinds maps metadata keys carried on the raw conversation to the
// reference-data kinds they identify.
var scaffoldingKinds = map[string]string{
	"persona_id":        "persona",
	"emotional_arc_id":  "emotional_arc",
	"topic_id":          "topic",
	"template_id":       "template",
	"generation_log_id": "generation_log",
}

const defaultQualityScore = 0.85

// Sub-criterion weights; they sum to 1 so the overall score stays a convex
// combination of the jittered parts.
const (
	weightEmpathy     = 0.30
	weightCoherence   = 0.25
	weightSafety      = 0.25
	weightHelpfulness = 0.20
)

const qualityJitter = 0.05

// enrich merges the validated conversation with reference lookups and
// derives a training pair per turn. Scaffolding identifiers are carried
// forward verbatim from the raw metadata, never regenerated.
func (p *Pipeline) enrich(ctx context.Context, row *db.ConversationRow, conv *types.Conversation) (*types.EnrichedConversation, error) {
	scaffolding := scaffoldingIDs(conv.Metadata)

	dataset := make(map[string]any)
	for key, kind := range scaffoldingKinds {
		id, ok := scaffolding[key]
		if !ok {
			continue
		}
		ref, err := p.store.GetReference(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		if ref == nil {
			p.logger.Warn("reference not found",
				zap.String("kind", kind), zap.String("id", id))
			continue
		}
		dataset[kind] = ref.Attributes
	}

	rng := qualityRNG(row.ID)
	baseScore := qualityBase(conv.Metadata)

	pairs := make([]types.TrainingPair, 0, len(conv.Turns))
	for i, turn := range conv.Turns {
		meta := types.PairMetadata{
			PersonaID:       scaffolding["persona_id"],
			EmotionalArcID:  scaffolding["emotional_arc_id"],
			TopicID:         scaffolding["topic_id"],
			TemplateID:      scaffolding["template_id"],
			PrimaryEmotion:  turn.EmotionalContext.PrimaryEmotion,
			EmotionValence:  classifyValence(turn.EmotionalContext.PrimaryEmotion),
			QualityScores:   qualityBreakdown(baseScore, rng),
			GenerationModel: row.ModelID,
		}

		pairs = append(pairs, types.TrainingPair{
			TurnIndex:        turn.Index,
			History:          append(make([]types.Turn, 0, i), conv.Turns[:i]...),
			CurrentUserInput: currentUserInput(conv.Turns, i),
			Response:         turn.Content,
			Metadata:         meta,
		})
	}

	return &types.EnrichedConversation{
		ConversationID: row.ID,
		Topic:          conv.Topic,
		Turns:          conv.Turns,
		TrainingPairs:  pairs,
		Dataset:        dataset,
		EnrichedAt:     time.Now().UTC(),
	}, nil
}

// currentUserInput is the turn's own content when it is a user turn,
// otherwise the most recent preceding user turn. Empty when no user turn
// precedes an assistant opening.
func currentUserInput(turns []types.Turn, i int) string {
	if turns[i].Role == types.RoleUser {
		return turns[i].Content
	}
	for j := i - 1; j >= 0; j-- {
		if turns[j].Role == types.RoleUser {
			return turns[j].Content
		}
	}
	return ""
}

func scaffoldingIDs(metadata map[string]any) map[string]string {
	ids := make(map[string]string)
	for key := range scaffoldingKinds {
		if v, ok := metadata[key].(string); ok && v != "" {
			ids[key] = v
		}
	}
	return ids
}

func qualityBase(metadata map[string]any) float64 {
	if v, ok := metadata["quality_score"].(float64); ok && v >= 0 && v <= 1 {
		return v
	}
	return defaultQualityScore
}

// qualityRNG derives a deterministic source from the conversation identity
// so repeated enrichment of the same conversation scores identically.
func qualityRNG(id uuid.UUID) *rand.Rand {
	seed := int64(binary.BigEndian.Uint64(id[:8]))
	return rand.New(rand.NewSource(seed))
}

func qualityBreakdown(base float64, rng *rand.Rand) types.QualityBreakdown {
	jitter := func() float64 {
		return clamp01(base + (rng.Float64()*2-1)*qualityJitter)
	}
	b := types.QualityBreakdown{
		Empathy:     jitter(),
		Coherence:   jitter(),
		Safety:      jitter(),
		Helpfulness: jitter(),
	}
	b.Overall = clamp01(b.Empathy*weightEmpathy + b.Coherence*weightCoherence +
		b.Safety*weightSafety + b.Helpfulness*weightHelpfulness)
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
