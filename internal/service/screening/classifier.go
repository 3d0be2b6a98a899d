package screening

import (
	"strings"

	"github.com/uma-arai/sbcntr-counseling/internal/common/config"
	"github.com/uma-arai/sbcntr-counseling/internal/model"
)

// Classifier は回答からリスクの段階を判定します
// answersは質問と同じ順序・同じ件数で渡されます
type Classifier interface {
	Classify(answers []string) model.ScreeningTier
}

var (
	defaultSevereKeywords = []string{
		"suicide", "kill myself", "end my life", "don't want to live",
		"harm myself", "self-harm", "cutting myself",
		"hallucination", "hearing voices", "seeing things",
		"paranoid", "everyone is watching me",
		"死にたい", "自殺", "消えたい", "生きていたくない", "自分を傷つけ", "リストカット",
		"幻聴", "幻覚", "監視されている",
	}
	defaultModerateKeywords = []string{
		"depressed", "anxious", "panic attack", "can't sleep",
		"no energy", "hopeless", "worthless", "trauma",
		"abuse", "violent", "alcohol", "drugs", "addiction",
		"うつ", "不安", "パニック", "眠れない", "不眠", "気力がない",
		"絶望", "無価値", "トラウマ", "虐待", "暴力", "アルコール", "薬物", "依存",
	}
	defaultAffirmativePrefixes = []string{
		"はい", "ある", "あります", "あった", "ありました", "時々", "ときどき", "たまに",
		"よく", "何度も", "何回も",
		"yes", "yeah", "yep", "sometimes", "often", "occasionally", "now and then",
		"from time to time", "at times", "frequently", "i have", "i do", "i did", "many times", "a lot",
	}
	// 否定は肯定より先に判定するため、"i have never"のような長い否定も含める
	defaultNegativePrefixes = []string{
		"いいえ", "ない", "ありません", "まったく", "全く", "一度もない",
		"no", "nope", "nah", "never", "not", "i have never", "i've never", "i haven't",
		"i don't", "i do not", "i did not", "i didn't",
	}
	// 質問の言い回しをなぞっただけの語句。否定の回答からはこれらを除いてから重度のキーワードを探す
	defaultQuestionEchoKeywords = []string{
		"自分を傷つけ", "傷つけたい", "harm myself", "hurt myself", "self-harm",
	}
)

// KeywordClassifier はキーワード一致による判定器です
//
//   - 自傷の質問に肯定で回答した場合はBLOCK
//   - 重度のキーワードを含む場合はBLOCK（自傷の質問への否定の回答は、質問をなぞった語句を除いて判定）
//   - 中程度のキーワードを含む場合はREFER
//   - それ以外はPASS
type KeywordClassifier struct {
	severe      []string
	moderate    []string
	affirmative []string
	negative    []string
	echo        []string
}

// NewKeywordClassifier は設定のキーワードで判定器を作成します
// 空のリストはデフォルトのキーワードを使用します
func NewKeywordClassifier(cfg config.ScreeningConfig) *KeywordClassifier {
	return &KeywordClassifier{
		severe:      normalizeAll(orDefault(cfg.SevereKeywords, defaultSevereKeywords)),
		moderate:    normalizeAll(orDefault(cfg.ModerateKeywords, defaultModerateKeywords)),
		affirmative: normalizeAll(orDefault(cfg.AffirmativePrefixes, defaultAffirmativePrefixes)),
		negative:    normalizeAll(orDefault(cfg.NegativePrefixes, defaultNegativePrefixes)),
		echo:        normalizeAll(orDefault(cfg.QuestionEchoKeywords, defaultQuestionEchoKeywords)),
	}
}

func (c *KeywordClassifier) Classify(answers []string) model.ScreeningTier {
	normalized := make([]string, len(answers))
	for i, a := range answers {
		normalized[i] = normalize(a)
	}

	severeTargets := make([]string, 0, len(normalized))
	for i, answer := range normalized {
		if i == model.SelfHarmQuestionIndex {
			switch {
			case hasAnyPrefix(answer, c.negative):
				answer = removeAll(answer, c.echo)
			case hasAnyPrefix(answer, c.affirmative):
				return model.ScreeningTierBlock
			}
		}
		severeTargets = append(severeTargets, answer)
	}

	if containsAny(severeTargets, c.severe) {
		return model.ScreeningTierBlock
	}
	if containsAny(normalized, c.moderate) {
		return model.ScreeningTierRefer
	}
	return model.ScreeningTierPass
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if n := normalize(v); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func orDefault(values, defaults []string) []string {
	if len(values) == 0 {
		return defaults
	}
	return values
}

// hasAnyPrefix は英単語の途中で一致しないように語境界を確認します（"no"は"now"に一致しない）
func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if !strings.HasPrefix(s, p) {
			continue
		}
		rest := s[len(p):]
		if rest == "" || !isASCIILetter(p[len(p)-1]) || !isASCIILetter(rest[0]) {
			return true
		}
	}
	return false
}

func isASCIILetter(b byte) bool {
	return 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z'
}

func removeAll(s string, phrases []string) string {
	for _, p := range phrases {
		s = strings.ReplaceAll(s, p, "")
	}
	return s
}

func containsAny(answers, keywords []string) bool {
	for _, answer := range answers {
		for _, k := range keywords {
			if strings.Contains(answer, k) {
				return true
			}
		}
	}
	return false
}
