package runpod

const podFields = `
	id
	name
	desiredStatus
	gpuCount
	imageName
	machineId
	costPerHr
	machine { gpuDisplayName }
	runtime {
		uptimeInSeconds
		ports { ip isIpPublic privatePort publicPort type }
	}`

const listPodsQuery = `query Pods {
	myself {
		pods {` + podFields + `
		}
	}
}`

const getPodQuery = `query Pod($podId: String!) {
	pod(input: {podId: $podId}) {` + podFields + `
	}
}`

const createPodMutation = `mutation CreatePod($input: PodFindAndDeployOnDemandInput!) {
	podFindAndDeployOnDemand(input: $input) {
		id
		name
		desiredStatus
		gpuCount
		imageName
		machineId
		machine { gpuDisplayName }
	}
}`

const resumePodMutation = `mutation ResumePod($input: PodResumeInput!) {
	podResume(input: $input) {
		id
		desiredStatus
		gpuCount
		costPerHr
	}
}`

const stopPodMutation = `mutation StopPod($input: PodStopInput!) {
	podStop(input: $input) {
		id
		desiredStatus
	}
}`

const terminatePodMutation = `mutation TerminatePod($input: PodTerminateInput!) {
	podTerminate(input: $input)
}`
