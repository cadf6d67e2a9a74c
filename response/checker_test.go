package response

import (
	"testing"

	"github.com/lingagacha/mtlcore/config"
)

func TestCheckFailDataOnEmptyDst(t *testing.T) {
	c := NewChecker(config.LanguageJA, config.LanguageZH, nil, nil)
	overall, _ := c.Check(map[string]string{"0": "こんにちは"}, map[string]string{}, nil, 0)
	if overall != ErrorFailData {
		t.Errorf("expected FAIL_DATA, got %v", overall)
	}
}

func TestCheckFailLineCountOnMismatch(t *testing.T) {
	c := NewChecker(config.LanguageJA, config.LanguageZH, nil, nil)
	src := map[string]string{"0": "a", "1": "b"}
	dst := map[string]string{"0": "x"}
	overall, _ := c.Check(src, dst, nil, 0)
	if overall != ErrorFailLineCount {
		t.Errorf("expected FAIL_LINE_COUNT, got %v", overall)
	}
}

func TestCheckSingleItemBypassesAfterRetryThreshold(t *testing.T) {
	c := NewChecker(config.LanguageJA, config.LanguageZH, nil, nil)
	src := map[string]string{"0": "テキスト"}
	dst := map[string]string{"0": "stubborn output still has きたない kana residue"}

	// Below the threshold this would normally fail on kana residue.
	_, belowLines := c.Check(src, dst, nil, retryCountThreshold-1)
	if belowLines["0"] != ErrorLineKana {
		t.Fatalf("expected kana residue below the retry threshold, got %v", belowLines["0"])
	}

	overall, lines := c.Check(src, dst, nil, retryCountThreshold)
	if overall != ErrorNone {
		t.Errorf("expected bypass to NONE at retry threshold, got %v", overall)
	}
	if lines["0"] != ErrorNone {
		t.Errorf("expected bypassed line to read NONE, got %v", lines["0"])
	}
}

func TestCheckDegradationLine(t *testing.T) {
	c := NewChecker(config.LanguageEN, config.LanguageZH, nil, nil)
	src := map[string]string{"0": "hello there"}
	dst := map[string]string{"0": "ahahahahahahahahahahahahahahahahaha"}

	_, lines := c.Check(src, dst, nil, 0)
	if lines["0"] != ErrorLineDegradation {
		t.Errorf("expected degradation error, got %v", lines["0"])
	}
}

func TestCheckDegradationDoesNotFireWhenSourceAlreadyRepeats(t *testing.T) {
	c := NewChecker(config.LanguageJA, config.LanguageZH, nil, nil)
	src := map[string]string{"0": "あはははははははははははははははははははは"}
	dst := map[string]string{"0": "ahahahahahahahahahahahahahahahahaha"}

	_, lines := c.Check(src, dst, nil, 0)
	if lines["0"] != ErrorNone {
		t.Errorf("expected no degradation when source already repeats, got %v", lines["0"])
	}
}

func TestCheckKanaResidueWhenSourceIsJapanese(t *testing.T) {
	c := NewChecker(config.LanguageJA, config.LanguageZH, nil, nil)
	src := map[string]string{"0": "おはよう"}
	dst := map[string]string{"0": "こんにちは、元気ですか"}

	_, lines := c.Check(src, dst, nil, 0)
	if lines["0"] != ErrorLineKana {
		t.Errorf("expected kana residue error, got %v", lines["0"])
	}
}

func TestCheckKanaResidueDoesNotFireForNonJapaneseSource(t *testing.T) {
	c := NewChecker(config.LanguageEN, config.LanguageZH, nil, nil)
	src := map[string]string{"0": "good morning"}
	dst := map[string]string{"0": "こんにちは、元気ですか"}

	_, lines := c.Check(src, dst, nil, 0)
	if lines["0"] == ErrorLineKana {
		t.Errorf("kana residue should only gate on a Japanese source, got %v", lines["0"])
	}
}

func TestCheckHangeulResidueWhenSourceIsKorean(t *testing.T) {
	c := NewChecker(config.LanguageKO, config.LanguageZH, nil, nil)
	src := map[string]string{"0": "안녕하세요"}
	dst := map[string]string{"0": "안녕하세요 친구"}

	_, lines := c.Check(src, dst, nil, 0)
	if lines["0"] != ErrorLineHangeul {
		t.Errorf("expected hangeul residue error, got %v", lines["0"])
	}
}

func TestCheckHangeulResidueDoesNotFireForNonKoreanSource(t *testing.T) {
	c := NewChecker(config.LanguageEN, config.LanguageZH, nil, nil)
	src := map[string]string{"0": "hello friend"}
	dst := map[string]string{"0": "안녕하세요 친구"}

	_, lines := c.Check(src, dst, nil, 0)
	if lines["0"] == ErrorLineHangeul {
		t.Errorf("hangeul residue should only gate on a Korean source, got %v", lines["0"])
	}
}

func TestCheckSimilarityGateJapaneseToChinese(t *testing.T) {
	c := NewChecker(config.LanguageJA, config.LanguageZH, nil, nil)
	src := map[string]string{"0": "今日は良い天気ですね、散歩に行きましょう"}
	dst := map[string]string{"0": "今日は良い天気ですね、散歩に行きましょう"}

	// An untranslated echo still holds kana, and the kana-residue rule
	// runs before the similarity gate, so it is reported as KANA.
	_, lines := c.Check(src, dst, nil, 0)
	if lines["0"] != ErrorLineKana {
		t.Errorf("expected kana error for an untranslated echo, got %v", lines["0"])
	}
}

func TestCheckSimilarityGateJapaneseToChineseSkipsWhenNoKanaResidue(t *testing.T) {
	c := NewChecker(config.LanguageJA, config.LanguageZH, nil, nil)
	src := map[string]string{"0": "今日"}
	dst := map[string]string{"0": "今日"}

	_, lines := c.Check(src, dst, nil, 0)
	if lines["0"] != ErrorNone {
		t.Errorf("expected no similarity error when dst retains no kana, got %v", lines["0"])
	}
}

func TestCheckSimilarityAppliesOutsideConfiguredPairs(t *testing.T) {
	c := NewChecker(config.LanguageEN, config.LanguageZH, nil, nil)
	src := map[string]string{"0": "hello world, how are you"}
	dst := map[string]string{"0": "hello world, how are you"}

	_, lines := c.Check(src, dst, nil, 0)
	if lines["0"] != ErrorLineSimilarity {
		t.Errorf("expected similarity error for EN->ZH echo, got %v", lines["0"])
	}
}

func TestCheckSimilarityContainmentEitherDirection(t *testing.T) {
	c := NewChecker(config.LanguageEN, config.LanguageZH, nil, nil)
	src := map[string]string{"0": "ok"}
	dst := map[string]string{"0": "ok, sounds good to me"}

	_, lines := c.Check(src, dst, nil, 0)
	if lines["0"] != ErrorLineSimilarity {
		t.Errorf("expected similarity error when src is contained in dst, got %v", lines["0"])
	}
}

func TestCheckEmptyLineError(t *testing.T) {
	c := NewChecker(config.LanguageJA, config.LanguageZH, nil, nil)
	src := map[string]string{"0": "text", "1": "more text"}
	dst := map[string]string{"0": "翻訳済み", "1": "   "}

	_, lines := c.Check(src, dst, nil, 0)
	if lines["1"] != ErrorLineEmpty {
		t.Errorf("expected empty line error, got %v", lines["1"])
	}
}

func TestCheckEmptyLineAllowedWhenSourceIsAlsoEmpty(t *testing.T) {
	c := NewChecker(config.LanguageJA, config.LanguageZH, nil, nil)
	src := map[string]string{"0": "   ", "1": "おはよう"}
	dst := map[string]string{"0": "", "1": "早上好"}

	_, lines := c.Check(src, dst, nil, 0)
	if lines["0"] != ErrorNone {
		t.Errorf("expected no error for an intentionally empty source, got %v", lines["0"])
	}
}

func TestCheckValidTranslationPasses(t *testing.T) {
	c := NewChecker(config.LanguageJA, config.LanguageZH, nil, nil)
	src := map[string]string{"0": "おはようございます"}
	dst := map[string]string{"0": "早上好"}

	overall, lines := c.Check(src, dst, nil, 0)
	if overall != ErrorNone || lines["0"] != ErrorNone {
		t.Errorf("expected a clean pass, got overall=%v line=%v", overall, lines["0"])
	}
}

func TestCheckPlaceholderSentinelInSourcePassesUnconditionally(t *testing.T) {
	c := NewChecker(config.LanguageJA, config.LanguageZH, nil, nil)
	src := map[string]string{"0": "<PRESERVE_0>だった"}
	dst := map[string]string{"0": "something else entirely, still not translated"}

	_, lines := c.Check(src, dst, nil, 0)
	if lines["0"] != ErrorNone {
		t.Errorf("expected sentinel-bearing source to pass unconditionally, got %v", lines["0"])
	}
}

func TestCheckRuleFilterExcludesNumericSource(t *testing.T) {
	c := NewChecker(config.LanguageJA, config.LanguageZH, nil, nil)
	src := map[string]string{"0": "123"}
	dst := map[string]string{"0": "totally unrelated garbage"}

	_, lines := c.Check(src, dst, nil, 0)
	if lines["0"] != ErrorNone {
		t.Errorf("expected numeric-only source to pass via the rule filter, got %v", lines["0"])
	}
}

// stubRuleFilter reports skipInternal verbatim as the seen value for
// the one call it expects, letting a test observe whether the checker
// actually threads the per-line flag through.
type stubRuleFilter struct {
	sawSkipInternal bool
	filterResult    bool
}

func (f *stubRuleFilter) Filter(src string, skipInternal bool) bool {
	f.sawSkipInternal = skipInternal
	return f.filterResult
}

func TestCheckRuleFilterSkippedWhenSkipInternalFilterSet(t *testing.T) {
	rf := &stubRuleFilter{filterResult: false}
	c := NewChecker(config.LanguageJA, config.LanguageZH, rf, nil)
	src := map[string]string{"0": "123"}
	dst := map[string]string{"0": "一二三"}
	skipInternal := map[string]bool{"0": true}

	c.Check(src, dst, skipInternal, 0)
	if !rf.sawSkipInternal {
		t.Error("expected the per-line SkipInternalFilter flag to reach the rule filter")
	}
}

func TestCheckLanguageFilterExcludesAlreadyTargetText(t *testing.T) {
	c := NewChecker(config.LanguageJA, config.LanguageZH, nil, nil)
	src := map[string]string{"0": "hello, friend"}
	dst := map[string]string{"0": "completely different text"}

	_, lines := c.Check(src, dst, nil, 0)
	if lines["0"] != ErrorNone {
		t.Errorf("expected non-Japanese source to pass via the language filter, got %v", lines["0"])
	}
}
