package analysis

import (
	"fmt"
	"strings"

	"loom/internal/atoms"
	"loom/internal/segments"
	"loom/internal/subtitles"
)

const deepAnalysisSystemPrompt = `你是一个专业的视频内容分析专家，擅长分析金融、历史、政治类的口播内容。
对给出的转写片段进行综合分析，只返回一个JSON对象，结构如下：
{
  "title": "片段标题",
  "summary": "内容摘要",
  "entities": {
    "persons": [], "countries": [], "organizations": [],
    "time_points": [], "events": [], "concepts": []
  },
  "topics": {
    "primary_topic": "", "secondary_topics": [], "free_tags": []
  }
}
实体名称必须使用文本中出现的原始写法。不要输出JSON以外的内容。`

const annotationSystemPrompt = `你是一个字幕语义标注助手。为每个原子标注话题、提到的实体和情绪。
只返回一个JSON对象：
{"annotations": [{"atom_id": "", "topics": [], "entities": [], "emotion": {"type": "", "score": 0.0}}]}
emotion.score 取值0到1。不要输出JSON以外的内容。`

const atomizeSystemPrompt = `你是一个字幕语义切分助手。把连续的字幕行合并成语义完整的原子（一个观点、一个事件或一段完整叙述）。
只返回一个JSON对象：
{"atoms": [{"utterance_ids": [1, 2], "type": "statement", "completeness": "完整"}]}
每条字幕只能属于一个原子，utterance_ids必须来自输入。不要输出JSON以外的内容。`

func buildDeepAnalysisPrompt(seg segments.Segment, resolved []atoms.Atom) string {
	var b strings.Builder
	fmt.Fprintf(&b, "片段 %s（%s - %s），共%d个原子。\n\n",
		seg.SegmentID, seg.StartTimeStr, seg.EndTimeStr, len(resolved))
	for _, atom := range resolved {
		fmt.Fprintf(&b, "[%s] %s\n", atom.AtomID, atom.MergedText)
	}
	return b.String()
}

func buildAnnotationPrompt(batch []atoms.Atom) string {
	var b strings.Builder
	fmt.Fprintf(&b, "为以下%d个原子逐一标注：\n\n", len(batch))
	for _, atom := range batch {
		fmt.Fprintf(&b, "[%s] %s\n", atom.AtomID, atom.MergedText)
	}
	return b.String()
}

func buildAtomizePrompt(batch []subtitles.Utterance) string {
	var b strings.Builder
	fmt.Fprintf(&b, "以下是%d条按时间排序的字幕：\n\n", len(batch))
	for _, utt := range batch {
		fmt.Fprintf(&b, "[%d] %s\n", utt.ID, utt.Text)
	}
	return b.String()
}
