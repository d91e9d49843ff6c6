package auth

// ReminderText is pushed to the chat when no usable token is stored.
const ReminderText = `🔔 滴答清单授权提醒

您的 access_token 已过期或不存在，需要重新授权。

请在运行 dida-digest 的机器上完成以下步骤：
1. 执行 dida-digest auth login
2. 打开程序显示的授权链接并同意授权
3. 授权完成后程序会自动保存 token（或手动粘贴 code）

授权完成前不会推送任务摘要。`
