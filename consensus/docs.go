package consensus

//
//             +-----------------+
//             |  initial round  |
//             +--------+--------+
//                      |
//                      v
//  +-------------------+--------------------+
//  |  LOCAL_RUNNING                         |
//  |  behaviour读取当前快照，产生payload      |
//  +-------------------+--------------------+
//                      |
//                      v
//  +-------------------+--------------------+
//  |  AWAITING_CONSENSUS                    |
//  |  Submit(payload) + AwaitRoundEnd       |  (网关确认前一直挂起)
//  +-------------------+--------------------+
//                      |
//                      v
//  +-------------------+--------------------+
//  |  DONE                                  |
//  |  从确认的快照推导event                   |
//  +-------------------+--------------------+
//                      |
//                      v (round, event) -> next
//             +--------+--------+
//             | terminal round? +--- no ---> 回到LOCAL_RUNNING
//             +--------+--------+
//                      | yes
//                      v
//                    Done
//
//RoundBehaviour - 调度器，唯一修改当前轮次的组件
//	- fsm.App - 轮次描述和转移表，启动时校验
//	- behaviour.BaseBehaviour - 两阶段协议的驱动
//	- behaviour.Gateway - 共识网关，LocalGateway或者p2p Reactor
//	- CheckpointStore - 快照和检查点持久化，重启后恢复未确认的payload
