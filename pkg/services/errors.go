package services

import "errors"

var (
	// ErrSessionNotFound セッションが存在しないか期限切れ
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoStore ストアIDが未設定（ネットワーク呼び出しは行わない）
	ErrNoStore = errors.New("store id is not set")
	// ErrEmptyMessage 空のチャットメッセージ
	ErrEmptyMessage = errors.New("message is empty")
	// ErrChatBusy 前の送信がまだ完了していない
	ErrChatBusy = errors.New("a chat request is already in flight")
	// ErrMissingChanges コマンドに changes 配列が無い
	ErrMissingChanges = errors.New("command has no changes")
	// ErrCommandNotFound 指定したメッセージにコマンドが無い
	ErrCommandNotFound = errors.New("command not found in transcript")
	// ErrNotConfirmed ユーザーの確認が無い
	ErrNotConfirmed = errors.New("action requires explicit confirmation")
	// ErrNotRevertable 成功ステータス以外のエントリは取り消せない
	ErrNotRevertable = errors.New("history entry cannot be reverted")
	// ErrRevertInFlight 同じエントリの取り消しが処理中
	ErrRevertInFlight = errors.New("revert already in progress")
	// ErrUnknownTool カタログに無いツール
	ErrUnknownTool = errors.New("unknown tool")
	// ErrStoreChanged 応答を待つ間にセッションが別のストアへ切り替わった（結果は破棄する）
	ErrStoreChanged = errors.New("session switched to another store")
)

// 画面に表示する固定メッセージ
const (
	MsgChatFailure    = "Erro ao conectar com o servidor. Tente novamente."
	MsgApplyFailure   = "Erro ao aplicar as alterações. Tente novamente."
	MsgMissingChanges = "Comando inválido: nenhuma alteração encontrada."
	MsgLoginFailure   = "Não foi possível entrar. Verifique a loja e a senha."
	MsgRevertFailure  = "Erro ao desfazer a ação. Tente novamente."
	MsgApplyFallback  = "Alterações aplicadas com sucesso."
)
