package itaiji

// Character fold table applied before any other standardization step.
// Maps old-form and variant kanji used in place names to the form the
// dictionary is built with, plus the small-kana folds the address
// notations require (ケ/ヶ → ガ, ツ → ッ).
var itaijiTable = map[rune]rune{
	'亞': '亜', '惡': '悪', '壓': '圧', '圍': '囲', '爲': '為',
	'醫': '医', '壹': '壱', '稻': '稲', '飮': '飲', '隱': '隠',
	'營': '営', '榮': '栄', '衞': '衛', '驛': '駅', '圓': '円',
	'緣': '縁', '鹽': '塩', '奧': '奥', '應': '応', '橫': '横',
	'歐': '欧', '黃': '黄', '溫': '温', '穩': '穏', '假': '仮',
	'價': '価', '畫': '画', '會': '会', '壞': '壊', '懷': '懐',
	'繪': '絵', '擴': '拡', '殼': '殻', '覺': '覚', '學': '学',
	'嶽': '岳', '樂': '楽', '渴': '渇', '勸': '勧', '卷': '巻',
	'寬': '寛', '歡': '歓', '觀': '観', '關': '関', '陷': '陥',
	'巖': '巌', '顏': '顔', '歸': '帰', '氣': '気', '龜': '亀',
	'僞': '偽', '戲': '戯', '犧': '犠', '舊': '旧', '據': '拠',
	'擧': '挙', '虛': '虚', '峽': '峡', '挾': '挟', '狹': '狭',
	'鄕': '郷', '曉': '暁', '區': '区', '驅': '駆', '勳': '勲',
	'薰': '薫', '徑': '径', '惠': '恵', '揭': '掲', '溪': '渓',
	'經': '経', '繼': '継', '莖': '茎', '螢': '蛍', '輕': '軽',
	'鷄': '鶏', '藝': '芸', '缺': '欠', '儉': '倹', '劍': '剣',
	'圈': '圏', '檢': '検', '權': '権', '獻': '献', '縣': '県',
	'險': '険', '顯': '顕', '驗': '験', '嚴': '厳', '廣': '広',
	'恆': '恒', '鑛': '鉱', '號': '号', '國': '国', '黑': '黒',
	'碎': '砕', '齋': '斎', '劑': '剤', '櫻': '桜', '雜': '雑',
	'參': '参', '慘': '惨', '棧': '桟', '蠶': '蚕', '贊': '賛',
	'殘': '残', '絲': '糸', '辭': '辞', '舍': '舎', '寫': '写',
	'釋': '釈', '壽': '寿', '收': '収', '從': '従', '澁': '渋',
	'獸': '獣', '縱': '縦', '肅': '粛', '處': '処', '緖': '緒',
	'敍': '叙', '尙': '尚', '奬': '奨', '將': '将', '燒': '焼',
	'證': '証', '乘': '乗', '剩': '剰', '壤': '壌', '孃': '嬢',
	'條': '条', '淨': '浄', '狀': '状', '疊': '畳', '讓': '譲',
	'釀': '醸', '囑': '嘱', '觸': '触', '寢': '寝', '愼': '慎',
	'眞': '真', '盡': '尽', '圖': '図', '粹': '粋', '醉': '酔',
	'隨': '随', '髓': '髄', '數': '数', '樞': '枢', '瀨': '瀬',
	'聲': '声', '靜': '静', '齊': '斉', '攝': '摂', '竊': '窃',
	'專': '専', '戰': '戦', '淺': '浅', '潛': '潜', '纖': '繊',
	'錢': '銭', '禪': '禅', '曾': '曽', '莊': '荘', '搜': '捜',
	'巢': '巣', '爭': '争', '窗': '窓', '總': '総', '聰': '聡',
	'裝': '装', '騷': '騒', '增': '増', '藏': '蔵', '臟': '臓',
	'卽': '即', '屬': '属', '續': '続', '墮': '堕', '體': '体',
	'對': '対', '帶': '帯', '滯': '滞', '臺': '台', '瀧': '滝',
	'擇': '択', '澤': '沢', '單': '単', '擔': '担', '膽': '胆',
	'團': '団', '彈': '弾', '斷': '断', '遲': '遅', '晝': '昼',
	'蟲': '虫', '鑄': '鋳', '廳': '庁', '徵': '徴', '聽': '聴',
	'鎭': '鎮', '遞': '逓', '鐵': '鉄', '轉': '転', '點': '点',
	'傳': '伝', '黨': '党', '盜': '盗', '燈': '灯', '當': '当',
	'德': '徳', '獨': '独', '讀': '読', '屆': '届', '繩': '縄',
	'貳': '弐', '腦': '脳', '霸': '覇', '廢': '廃', '拜': '拝',
	'賣': '売', '麥': '麦', '發': '発', '髮': '髪', '拔': '抜',
	'晚': '晩', '蠻': '蛮', '祕': '秘', '彥': '彦', '姬': '姫',
	'濱': '浜', '甁': '瓶', '拂': '払', '佛': '仏', '倂': '併',
	'竝': '並', '變': '変', '邊': '辺', '邉': '辺', '辨': '弁',
	'瓣': '弁', '辯': '弁', '舖': '舗', '步': '歩', '穗': '穂',
	'寶': '宝', '豐': '豊', '滿': '満', '彌': '弥', '藥': '薬',
	'譯': '訳', '豫': '予', '餘': '余', '與': '与', '譽': '誉',
	'樣': '様', '來': '来', '賴': '頼', '亂': '乱', '覽': '覧',
	'龍': '竜', '兩': '両', '獵': '猟', '綠': '緑', '壘': '塁',
	'淚': '涙', '禮': '礼', '勵': '励', '靈': '霊', '齡': '齢',
	'戀': '恋', '爐': '炉', '勞': '労', '樓': '楼', '郞': '郎',
	'錄': '録', '灣': '湾', '籠': '篭', '籘': '藤', '萬': '万',
	'嶋': '島', '嶌': '島', '埜': '野', '舘': '館', '冨': '富',
	'峯': '峰', '淵': '渕', '桒': '桑', '槇': '槙', '檜': '桧',
	'曻': '昇', '浪': '波', '龝': '秋',
	'ヶ': 'ガ', 'ケ': 'ガ', 'ヵ': 'カ', 'ツ': 'ッ',
}

// Hyphen-like runes folded to '-' (includes the katakana long sound
// mark, which addresses use as a separator).
const hyphens = "-﹣－‐‑⁃˖" +
	"−‒–—―﹘ー"

const kansujiDigits = "〇一二三四五六七八九"

const zenkakuDigits = "０１２３４５６７８９"

// Runes that may begin a chiban (parcel) designation: former land
// grades, zodiac signs, and iroha letters.
const chibanHeads = "甲乙丙丁戊己庚辛壬癸" +
	"子丑寅卯辰巳午未申酉戌亥" +
	"続新" +
	"イロハニホヘトチリヌルヲワカヨタレソツネ"

func foldItaiji(r rune) rune {
	if dst, ok := itaijiTable[r]; ok {
		return dst
	}
	return r
}

// foldWidth maps full-width ASCII variants to their half-width forms.
func foldWidth(r rune) rune {
	if r >= 0xFF01 && r <= 0xFF5E {
		return r - 0xFF01 + 0x21
	}
	return r
}

// foldKana maps hiragana to katakana.
func foldKana(r rune) rune {
	if r >= 'ぁ' && r <= 'ゖ' {
		return r + 0x60
	}
	return r
}
