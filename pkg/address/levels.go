// Package address defines the value types shared by every layer of the
// geocoder: hierarchical address levels, the node record, search results
// and the key:value annotation bag carried by each node.
package address

import "fmt"

// Level is the position of an address element in the national hierarchy.
type Level int8

const (
	LevelUndefined Level = -1
	LevelPref      Level = 1 // 都道府県
	LevelCounty    Level = 2 // 郡・支庁・振興局
	LevelCity      Level = 3 // 市町村・特別区
	LevelWard      Level = 4 // 政令市の区
	LevelOaza      Level = 5 // 大字・町域
	LevelAza       Level = 6 // 丁目・小字
	LevelBlock     Level = 7 // 街区・地番
	LevelBld       Level = 8 // 住居番号・枝番
)

// Name returns the Japanese notation of the level.
func (l Level) Name() string {
	switch l {
	case LevelPref:
		return "都道府県"
	case LevelCounty:
		return "郡"
	case LevelCity:
		return "市町村・特別区"
	case LevelWard:
		return "政令市の区"
	case LevelOaza:
		return "町域・大字"
	case LevelAza:
		return "丁目・小字"
	case LevelBlock:
		return "街区・道路・地番"
	case LevelBld:
		return "建物・枝番"
	case LevelUndefined:
		return "未定義"
	}
	return "不明"
}

// Valid reports whether l is one of the eight defined levels.
func (l Level) Valid() bool {
	return l >= LevelPref && l <= LevelBld
}

// ParseLevel validates an integer level code from an external caller.
func ParseLevel(v int) (Level, error) {
	l := Level(v)
	if !l.Valid() {
		return LevelUndefined, fmt.Errorf("level must be between %d and %d, got %d",
			LevelPref, LevelBld, v)
	}
	return l, nil
}
