// Marble diagram parsing
// 弹珠图解析：空格被忽略，每个其他字符占一帧
package marble

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Never 表示从未发生的帧
const Never = math.MaxInt

// ErrMarble 默认的 '#' 错误值
var ErrMarble = errors.New("error")

// Kind 消息类型
type Kind int

const (
	// KindNext 数据
	KindNext Kind = iota
	// KindError 错误
	KindError
	// KindComplete 完成
	KindComplete
)

func (k Kind) String() string {
	switch k {
	case KindNext:
		return "N"
	case KindError:
		return "E"
	case KindComplete:
		return "C"
	default:
		return "?"
	}
}

// Message 某一帧上的一个通知
type Message struct {
	Frame int
	Kind  Kind
	Value interface{}
	Err   error
}

func (m Message) String() string {
	switch m.Kind {
	case KindNext:
		return fmt.Sprintf("%d:N(%v)", m.Frame, m.Value)
	case KindError:
		return fmt.Sprintf("%d:E(%v)", m.Frame, m.Err)
	default:
		return fmt.Sprintf("%d:C", m.Frame)
	}
}

// SubscriptionLog 一次订阅的开始帧与结束帧
type SubscriptionLog struct {
	Subscribed   int
	Unsubscribed int
}

func (l SubscriptionLog) String() string {
	end := "never"
	if l.Unsubscribed != Never {
		end = strconv.Itoa(l.Unsubscribed)
	}
	return fmt.Sprintf("%d..%s", l.Subscribed, end)
}

var timeProgression = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)(ms|s|m) `)

// progression 解析 "10ms " 形式的时间推进，返回帧数与消耗的字符数
func progression(chars []rune, i int) (frames int, consumed int, ok bool) {
	if i > 0 && chars[i-1] != ' ' {
		return 0, 0, false
	}
	match := timeProgression.FindStringSubmatch(string(chars[i:]))
	if match == nil {
		return 0, 0, false
	}
	duration, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, 0, false
	}
	switch match[2] {
	case "s":
		duration *= 1000
	case "m":
		duration *= 60 * 1000
	}
	return int(duration), len([]rune(match[0])), true
}

// ParseMessages 解析数据源或期望的弹珠图。
// 值字符从 values 中取值，找不到时使用字符本身；'#' 使用 err（为 nil 时使用 ErrMarble）。
// '^' 标记第 0 帧，之前的帧为负数。
func ParseMessages(marbles string, values map[string]interface{}, err error) ([]Message, error) {
	if strings.ContainsRune(marbles, '!') {
		return nil, fmt.Errorf("marble %q: unsubscription marker '!' is not allowed here", marbles)
	}
	if err == nil {
		err = ErrMarble
	}

	chars := []rune(marbles)
	subIndex := strings.IndexRune(strings.TrimLeft(marbles, " "), '^')
	frame := 0
	if subIndex > 0 {
		frame = -subIndex
	}

	messages := []Message{}
	groupStart := -1
	for i := 0; i < len(chars); i++ {
		nextFrame := frame
		var message *Message

		switch c := chars[i]; c {
		case ' ':
		case '-', '^':
			nextFrame++
		case '(':
			groupStart = frame
			nextFrame++
		case ')':
			groupStart = -1
			nextFrame++
		case '|':
			message = &Message{Kind: KindComplete}
			nextFrame++
		case '#':
			message = &Message{Kind: KindError, Err: err}
			nextFrame++
		default:
			if c >= '0' && c <= '9' {
				if frames, consumed, ok := progression(chars, i); ok {
					nextFrame += frames
					i += consumed - 1
					break
				}
			}
			key := string(c)
			value, found := values[key]
			if !found {
				value = key
			}
			message = &Message{Kind: KindNext, Value: value}
			nextFrame++
		}

		if message != nil {
			message.Frame = frame
			if groupStart > -1 {
				message.Frame = groupStart
			}
			messages = append(messages, *message)
		}
		frame = nextFrame
	}
	return messages, nil
}

// ParseSubscription 解析订阅弹珠图：'^' 为订阅帧，'!' 为取消帧（不占帧）。
// 没有 '^' 时订阅帧为 Never；没有 '!' 时取消帧为 Never。
func ParseSubscription(marbles string) (SubscriptionLog, error) {
	chars := []rune(marbles)
	log := SubscriptionLog{Subscribed: Never, Unsubscribed: Never}
	frame := 0
	groupStart := -1

	for i := 0; i < len(chars); i++ {
		nextFrame := frame
		current := frame
		if groupStart > -1 {
			current = groupStart
		}

		switch c := chars[i]; c {
		case ' ':
		case '-':
			nextFrame++
		case '(':
			groupStart = frame
			nextFrame++
		case ')':
			groupStart = -1
			nextFrame++
		case '^':
			if log.Subscribed != Never {
				return log, fmt.Errorf("marble %q: found a second subscription point '^'", marbles)
			}
			log.Subscribed = current
			nextFrame++
		case '!':
			if log.Unsubscribed != Never {
				return log, fmt.Errorf("marble %q: found a second unsubscription point '!'", marbles)
			}
			log.Unsubscribed = current
		default:
			if c >= '0' && c <= '9' {
				if frames, consumed, ok := progression(chars, i); ok {
					nextFrame += frames
					i += consumed - 1
					break
				}
			}
			return log, fmt.Errorf("marble %q: only '^' and '!' markers are allowed, found %q", marbles, c)
		}
		frame = nextFrame
	}

	if log.Unsubscribed < 0 {
		log.Unsubscribed = Never
	}
	return log, nil
}
