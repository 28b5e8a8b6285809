package extract

// Marker is a human-language phrase that the mirrors inline into free text,
// tagged with the language it belongs to.
type Marker struct {
	Phrase string
	Lang   string
}

// QuoteMarkers introduce a quoted post inside a body text. Adding a
// language is a data change here.
var QuoteMarkers = []Marker{
	{"Quoting", "en"},
	{"Цитируя", "ru"},
	{"Цитує", "uk"},
	{"Citando", "es"},
	{"Citant", "fr"},
	{"Zitiert", "de"},
	{"Zitat von", "de"},
	{"Citando", "pt"},
	{"Citazione di", "it"},
	{"Cytując", "pl"},
	{"Citeert", "nl"},
	{"Alıntılanan", "tr"},
	{"を引用", "ja"},
	{"인용", "ko"},
	{"引用", "zh"},
	{"اقتباس", "ar"},
}

// TranslationMarkers announce that the following text is a machine
// translation. The language name sits before or after the phrase.
var TranslationMarkers = []Marker{
	{"Translated from", "en"},
	{"Переведено с", "ru"},
	{"Перекладено з", "uk"},
	{"Traducido del", "es"},
	{"Traducido de", "es"},
	{"Traduit de l’", "fr"},
	{"Traduit de l'", "fr"},
	{"Traduit du", "fr"},
	{"Traduit de", "fr"},
	{"Übersetzt aus dem", "de"},
	{"Übersetzt aus", "de"},
	{"Tradotto da", "it"},
	{"Traduzido do", "pt"},
	{"Traduzido de", "pt"},
	{"Przetłumaczono z", "pl"},
	{"Vertaald uit het", "nl"},
	{"Vertaald uit", "nl"},
	{"dilinden çevrildi", "tr"},
	{"から翻訳", "ja"},
	{"에서 번역됨", "ko"},
	{"翻译自", "zh"},
	{"مترجم من", "ar"},
}

// Poll state keywords, matched case-insensitively as substrings.
var (
	pollEndedKeywords = []string{
		"final results", "final result", "poll ended", "ended", "closed",
		"окончательные результаты", "итоги", "завершён", "завершен",
		"остаточні результати", "resultados finales", "résultats finaux",
		"endgültige ergebnisse", "risultati finali", "resultados finais",
		"wyniki końcowe", "eindresultaten", "最終結果", "최종 결과", "最终结果",
	}
	pollTimeKeywords = []string{
		"left", "remaining", "ends in",
		"осталось", "залишилось", "restan", "restant", "verbleibend", "übrig",
		"rimanent", "restam", "pozostał", "resterend", "残り", "남음", "剩余",
	}
)
